package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"discbatch/internal/catalog"
	"discbatch/internal/fileutil"
	"discbatch/internal/logging"
	"discbatch/internal/media/ffprobe"
	"discbatch/internal/profile"
	"discbatch/internal/services"
	"discbatch/internal/staging"
	"discbatch/internal/transcode"
)

const stageName = "merge"

// Prober reports the pixel size of a media file.
type Prober interface {
	Resolution(ctx context.Context, path string) (ffprobe.Dimensions, error)
}

// Validator checks an encoded output.
type Validator interface {
	Validate(ctx context.Context, path string) error
}

// Request is one image's merge job.
type Request struct {
	Catalog  catalog.Catalog
	Strategy Strategy
	Profile  profile.Profile
	// OutputDir receives the final files.
	OutputDir string
	// WorkDir holds intermediates; created when missing.
	WorkDir string
	// BaseName names outputs and intermediates ("Movie" for Movie.iso).
	BaseName string
	// ListPath is where the concat list is written.
	ListPath  string
	Overwrite bool
}

// Executor turns a catalog into encoded outputs.
type Executor struct {
	engines   map[profile.Engine]transcode.Engine
	prober    Prober
	validator Validator
	chunkSize int
	logger    *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithEngine registers the engine used for profiles of kind.
func WithEngine(kind profile.Engine, engine transcode.Engine) Option {
	return func(e *Executor) {
		if engine != nil {
			e.engines[kind] = engine
		}
	}
}

// WithProber enables resolution probing for overridable profiles.
func WithProber(p Prober) Option {
	return func(e *Executor) {
		e.prober = p
	}
}

// WithValidator checks every encoded output.
func WithValidator(v Validator) Option {
	return func(e *Executor) {
		e.validator = v
	}
}

// WithChunkSize sets the copy buffer in bytes.
func WithChunkSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor builds an executor. At least the engine for the selected
// profile must be registered before Execute is called.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		engines:   make(map[profile.Engine]transcode.Engine),
		chunkSize: fileutil.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, stageName)
	return e
}

// target is one destination file and the groups that feed it.
type target struct {
	index    int
	numbered bool
	groups   []catalog.Group
	dest     string
}

// intermediate is a prepared input for the final encode. done marks inputs
// that are already the final output.
type intermediate struct {
	target target
	path   string
	done   bool
}

// plan carries one Execute call through a strategy.
type plan struct {
	req     Request
	exec    *Executor
	targets []target
	report  *Report
	logger  *slog.Logger
}

type strategy interface {
	prepare(ctx context.Context, p *plan) ([]intermediate, error)
}

// Execute runs the request. Segment and encode failures are recorded in the
// report; the returned error is reserved for cancellation and for requests
// that cannot start at all.
func (e *Executor) Execute(ctx context.Context, req Request) (Report, error) {
	report := Report{}
	if req.Catalog.Empty() {
		return report, nil
	}
	if strings.TrimSpace(req.BaseName) == "" {
		return report, services.Wrap(services.ErrValidation, stageName, "execute", "base name is empty", nil)
	}
	if req.Strategy == 0 {
		req.Strategy = DefaultStrategy
	}
	impl, err := req.Strategy.impl()
	if err != nil {
		return report, services.Wrap(services.ErrValidation, stageName, "execute", "select strategy", err)
	}
	if _, err := e.engineFor(req.Profile.Engine); err != nil {
		return report, err
	}
	if req.Strategy == PerSegmentTranscodeThenConcat {
		if _, err := e.engineFor(profile.EngineFFmpeg); err != nil {
			return report, err
		}
	}

	logger := logging.WithContext(ctx, e.logger).With(
		logging.String("strategy", req.Strategy.String()),
		logging.String("profile", req.Profile.Name),
	)

	targets := buildTargets(req)
	pending := make([]target, 0, len(targets))
	for _, t := range targets {
		exists, err := fileutil.Exists(t.dest)
		if err != nil {
			report.Outputs = append(report.Outputs, Output{Index: t.index, Path: t.dest, Status: StatusFailed, Err: err})
			report.fail(fmt.Errorf("inspect destination %s: %w", t.dest, err))
			continue
		}
		if exists && !req.Overwrite {
			logger.Info("destination exists, not overwritten",
				logging.String("output", t.dest),
				logging.String(logging.FieldEventType, "output_not_overwritten"),
			)
			report.Outputs = append(report.Outputs, Output{Index: t.index, Path: t.dest, Status: StatusNotOverwritten})
			continue
		}
		pending = append(pending, t)
	}
	if len(pending) == 0 {
		return report, nil
	}

	if err := (staging.Paths{WorkDir: req.WorkDir, ListPath: req.ListPath}).Prepare(); err != nil {
		return report, services.Wrap(services.ErrConfiguration, stageName, "prepare work dir", req.WorkDir, err)
	}

	p := &plan{req: req, exec: e, targets: pending, report: &report, logger: logger}
	inters, err := impl.prepare(ctx, p)
	if err != nil {
		return report, err
	}
	for _, in := range inters {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !in.done {
			report.Intermediates = append(report.Intermediates, in.path)
		}
		if err := e.encodeIntermediate(ctx, p, in); err != nil {
			return report, err
		}
	}
	return report, nil
}

// buildTargets maps groups to destinations. Only the raw and per-segment
// strategies produce one output per group.
func buildTargets(req Request) []target {
	groups := req.Catalog.Groups
	if req.Strategy == ByteCopyThenTranscode || len(groups) == 1 {
		return []target{{
			index:  1,
			groups: groups,
			dest:   filepath.Join(req.OutputDir, req.Profile.OutputName(req.BaseName)),
		}}
	}
	targets := make([]target, 0, len(groups))
	for i, g := range groups {
		n := i + 1
		targets = append(targets, target{
			index:    n,
			numbered: true,
			groups:   []catalog.Group{g},
			dest:     filepath.Join(req.OutputDir, req.Profile.OutputName(numberedName(req.BaseName, n))),
		})
	}
	return targets
}

func numberedName(base string, n int) string {
	return base + "_" + strconv.Itoa(n)
}

// intermediatePath names the intermediate for t inside the work dir.
func (p *plan) intermediatePath(t target) string {
	name := p.req.BaseName
	if t.numbered {
		name = numberedName(name, t.index)
	}
	return filepath.Join(p.req.WorkDir, name+".vob")
}

func (e *Executor) engineFor(kind profile.Engine) (transcode.Engine, error) {
	engine, ok := e.engines[kind]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "select engine",
			fmt.Sprintf("no %s engine configured", kind), nil)
	}
	return engine, nil
}

// encodeIntermediate is the shared tail: probe, encode, validate.
func (e *Executor) encodeIntermediate(ctx context.Context, p *plan, in intermediate) error {
	t := in.target
	logger := p.logger.With(logging.Int("output_index", t.index), logging.String("output", t.dest))

	if !in.done {
		engine, err := e.engineFor(p.req.Profile.Engine)
		if err != nil {
			return err
		}
		size := e.probeSize(ctx, logger, p.req.Profile, in.path)
		args := finalArgs(p.req.Profile, size)

		logger.Info("encoding intermediate",
			logging.String("input", in.path),
			logging.String(logging.FieldEventType, "encode_start"),
		)
		result, err := engine.Transcode(ctx, transcode.Request{
			Input:     in.path,
			Args:      args,
			Output:    t.dest,
			Overwrite: p.req.Overwrite,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			terr := &TranscodeError{Input: in.path, Output: t.dest, ExitCode: result.ExitCode, Diagnostics: result.Diagnostics, Err: err}
			e.recordFailure(logger, p.report, t, terr)
			return nil
		}
	}

	if err := e.validate(ctx, t.dest); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		terr := &TranscodeError{Input: in.path, Output: t.dest, Err: err}
		e.recordFailure(logger, p.report, t, terr)
		return nil
	}

	p.report.Outputs = append(p.report.Outputs, Output{Index: t.index, Path: t.dest, Status: StatusEncoded})
	logger.Info("output encoded",
		logging.String(logging.FieldEventType, "encode_complete"),
	)
	return nil
}

func (e *Executor) recordFailure(logger *slog.Logger, report *Report, t target, err error) {
	report.Outputs = append(report.Outputs, Output{Index: t.index, Path: t.dest, Status: StatusFailed, Err: err})
	report.fail(err)
	logging.WarnWithContext(logger, "encode failed", "encode_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "rerun with --verbose to see encoder output"),
		logging.String(logging.FieldImpact, "output missing for this title set"),
	)
}

// probeSize returns the probed frame size, or "" to keep the profile's own.
func (e *Executor) probeSize(ctx context.Context, logger *slog.Logger, p profile.Profile, path string) string {
	if e.prober == nil || !p.Overridable() {
		return ""
	}
	dims, err := e.prober.Resolution(ctx, path)
	if err != nil {
		hint := "check the ffprobe binary"
		if errors.Is(err, ffprobe.ErrProbeUnavailable) {
			hint = "install ffprobe or set tools.ffprobe"
		}
		logging.WarnWithContext(logger, "resolution probe failed; using profile size", "probe_failed",
			logging.String("input", path),
			logging.String("size", p.FixedResolution),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint),
		)
		return ""
	}
	logger.Debug("probed resolution",
		logging.String("input", path),
		logging.String("size", dims.String()),
	)
	return dims.String()
}

func (e *Executor) validate(ctx context.Context, path string) error {
	if e.validator == nil {
		return nil
	}
	err := e.validator.Validate(ctx, path)
	if errors.Is(err, ffprobe.ErrProbeUnavailable) {
		return nil
	}
	return err
}

// finalArgs selects the first video and audio streams unless the profile
// maps streams itself.
func finalArgs(p profile.Profile, size string) []string {
	args := p.Args(size)
	if p.OwnMapping {
		return args
	}
	return append([]string{"-dn", "-map", "0:v:0", "-map", "0:a:0"}, args...)
}
