package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"discbatch/internal/catalog"
	"discbatch/internal/history"
	"discbatch/internal/logging"
	"discbatch/internal/merge"
	"discbatch/internal/mount"
	"discbatch/internal/profile"
	"discbatch/internal/services"
	"discbatch/internal/staging"
	"discbatch/internal/textutil"
)

// Executor runs the merge for one image.
type Executor interface {
	Execute(ctx context.Context, req merge.Request) (merge.Report, error)
}

// History persists outcomes. *history.Store satisfies it.
type History interface {
	BeginRun(ctx context.Context, run history.Run) error
	FinishRun(ctx context.Context, run history.Run) error
	RecordResult(ctx context.Context, e history.Entry) error
	Succeeded(ctx context.Context, image, profile string) (bool, error)
}

// Settings are the batch-wide choices applied to every image.
type Settings struct {
	Strategy merge.Strategy
	Grouping catalog.Grouping
	Profile  profile.Profile
	// OutputDir overrides the per-image default (the image's directory).
	OutputDir      string
	Overwrite      bool
	CheckFreeSpace bool
	SkipSucceeded  bool
	DryRun         bool
}

// Controller drives images through mount, catalog, merge, and cleanup.
type Controller struct {
	mounter   mount.Mounter
	executor  Executor
	settings  Settings
	history   History
	freeSpace func(path string) (uint64, error)
	labeler   func(ctx context.Context, device string) (string, error)
	runID     string
	now       func() time.Time
	logger    *slog.Logger
	// runBegun is set once the history row for runID has been written.
	runBegun bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithHistory records results and enables SkipSucceeded.
func WithHistory(h History) Option {
	return func(c *Controller) {
		c.history = h
	}
}

// WithFreeSpace sets the free-space probe used when CheckFreeSpace is on.
func WithFreeSpace(fn func(path string) (uint64, error)) Option {
	return func(c *Controller) {
		c.freeSpace = fn
	}
}

// WithLabeler names device outputs after their volume label.
func WithLabeler(fn func(ctx context.Context, device string) (string, error)) Option {
	return func(c *Controller) {
		c.labeler = fn
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(c *Controller) {
		c.runID = id
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController builds a controller. mounter and executor are required.
func NewController(mounter mount.Mounter, executor Executor, settings Settings, opts ...Option) (*Controller, error) {
	if mounter == nil || executor == nil {
		return nil, errors.New("controller requires a mounter and an executor")
	}
	if settings.Strategy == 0 {
		settings.Strategy = merge.DefaultStrategy
	}
	if settings.Grouping == "" {
		settings.Grouping = catalog.GroupSorted
	}
	c := &Controller{
		mounter:  mounter,
		executor: executor,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = uuid.NewString()
	}
	c.logger = logging.NewComponentLogger(c.logger, "job")
	return c, nil
}

// RunID identifies this controller's batch in logs and history.
func (c *Controller) RunID() string {
	return c.runID
}

// Run processes images strictly in order. It stops early only on
// cancellation; the remaining images stay in the unprocessed set.
func (c *Controller) Run(ctx context.Context, images []DiscImage) Report {
	ctx = services.WithRunID(ctx, c.runID)
	report := Report{RunID: c.runID, Images: images, Started: c.now()}
	logger := logging.WithContext(ctx, c.logger)

	c.beginRun(ctx, len(images), report.Started)
	logger.Info("batch started",
		logging.Int("images", len(images)),
		logging.String("strategy", c.settings.Strategy.String()),
		logging.String("profile", c.settings.Profile.Name),
		logging.String(logging.FieldEventType, "batch_start"),
	)

	for _, img := range images {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		res := c.Process(ctx, img)
		report.Results = append(report.Results, res)
		if res.Reason == ReasonCancelled {
			report.Cancelled = true
			break
		}
	}

	report.Finished = c.now()
	c.FinishRun(ctx, report)
	logger.Info("batch finished",
		logging.Int("succeeded", report.Count(OutcomeSucceeded)),
		logging.Int("partially_failed", report.Count(OutcomePartiallyFailed)),
		logging.Int("failed", report.Count(OutcomeFailed)),
		logging.Int("unprocessed", len(report.Unprocessed())),
		logging.Bool("cancelled", report.Cancelled),
		logging.Duration("elapsed", report.Finished.Sub(report.Started)),
		logging.String(logging.FieldEventType, "batch_complete"),
	)
	return report
}

// Process runs one image through the state machine. Cleanup and unmount
// always run, on a context that ignores cancellation. Callers outside Run
// (the watch loop) must not call Process concurrently and should close the
// run with FinishRun.
func (c *Controller) Process(ctx context.Context, img DiscImage) Result {
	ctx = services.WithImage(ctx, img.Name())
	ctx = services.WithRunID(ctx, c.runID)
	logger := logging.WithContext(ctx, c.logger)

	res := Result{Image: img, Title: textutil.DiscTitle(img.BaseName()), Started: c.now()}
	c.beginRun(ctx, 0, res.Started)
	c.transition(logger, StatePending)

	if c.settings.SkipSucceeded && c.history != nil && !c.settings.DryRun {
		done, err := c.history.Succeeded(ctx, img.Path, c.settings.Profile.Name)
		if err != nil {
			logging.WarnWithContext(logger, "history lookup failed; converting anyway", "history_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "image may be converted again"),
			)
		} else if done {
			logger.Info("image already converted; skipping",
				logging.String(logging.FieldEventType, "image_skipped"),
			)
			res.Outcome, res.Reason, res.Skipped = OutcomeSucceeded, ReasonAlreadyConverted, true
			res.Finished = c.now()
			return res
		}
	}

	handle, err := c.mounter.Mount(ctx, img.Path)
	if err != nil {
		reason := "mount failed: " + err.Error()
		if ctx.Err() != nil {
			reason = ReasonCancelled
		}
		logging.ErrorWithContext(logger, "mount failed", "mount_failed",
			logging.Failure(err, logging.String(logging.FieldErrorHint, "check mount permissions and mount.base_dir"))...,
		)
		return c.finish(ctx, logger, res, OutcomeFailed, reason)
	}
	c.transition(logger, StateMounted, logging.String("root", handle.Root))

	base := c.baseName(ctx, img)
	res.Title = textutil.DiscTitle(base)
	outDir := c.outputDir(img)
	paths := staging.For(outDir, img.Name())

	reason := c.work(ctx, logger, img, handle, base, outDir, paths, &res)

	c.release(context.WithoutCancel(ctx), logger, handle, paths)
	c.transition(logger, StateCleaned)

	if reason == "" && ctx.Err() != nil && res.Merge.Count(merge.StatusEncoded) == 0 && len(res.Outputs) == 0 {
		reason = ReasonCancelled
	}
	outcome := classify(res, reason)
	if c.settings.DryRun && outcome == OutcomeSucceeded {
		reason = ReasonDryRun
	}
	return c.finish(ctx, logger, res, outcome, reason)
}

// work covers everything between mount and cleanup. A non-empty return is
// the failure reason.
func (c *Controller) work(ctx context.Context, logger *slog.Logger, img DiscImage, handle mount.Handle, base, outDir string, paths staging.Paths, res *Result) string {
	cat, err := catalog.Build(ctx, handle.Root,
		catalog.WithGrouping(c.settings.Grouping),
		catalog.WithLogger(logger),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ReasonCancelled
		}
		return "catalog failed: " + err.Error()
	}
	res.Segments = cat.SegmentCount()
	res.Bytes = cat.TotalBytes()
	c.transition(logger, StateCataloged,
		logging.Int("groups", len(cat.Groups)),
		logging.Int("segments", res.Segments),
		logging.Int("menus", len(cat.Menus)),
		logging.Int64("catalog_bytes", res.Bytes),
	)
	if cat.Empty() {
		return ReasonNoSegments
	}
	if c.settings.DryRun {
		res.Catalog = &cat
		return ""
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Sprintf("create output directory: %v", err)
	}
	if reason := c.checkSpace(logger, outDir, cat); reason != "" {
		return reason
	}
	if err := ctx.Err(); err != nil {
		return ReasonCancelled
	}

	c.transition(logger, StateMerging)
	report, err := c.executor.Execute(services.WithStage(ctx, string(StateMerging)), merge.Request{
		Catalog:   cat,
		Strategy:  c.settings.Strategy,
		Profile:   c.settings.Profile,
		OutputDir: outDir,
		WorkDir:   paths.WorkDir,
		BaseName:  base,
		ListPath:  paths.ListPath,
		Overwrite: c.settings.Overwrite,
	})
	res.Merge = report
	res.Outputs = report.Produced()
	if err != nil {
		if ctx.Err() != nil {
			return ReasonCancelled
		}
		logging.ErrorWithContext(logger, "merge aborted", "merge_aborted",
			logging.Failure(err, logging.String(logging.FieldErrorHint, "check the work directory and output directory"))...,
		)
		return err.Error()
	}
	if report.HasErrors() {
		return report.Err().Error()
	}
	return ""
}

// checkSpace verifies room for the intermediates in the output directory.
func (c *Controller) checkSpace(logger *slog.Logger, outDir string, cat catalog.Catalog) string {
	if !c.settings.CheckFreeSpace || c.freeSpace == nil {
		return ""
	}
	need := requiredBytes(c.settings.Strategy, cat)
	if need == 0 {
		return ""
	}
	free, err := c.freeSpace(outDir)
	if err != nil {
		logging.WarnWithContext(logger, "free space check failed; continuing", "free_space_unknown",
			logging.Error(err),
			logging.String(logging.FieldImpact, "merge may run out of disk space"),
		)
		return ""
	}
	if free < need {
		logging.ErrorWithContext(logger, "not enough free space for intermediates", "insufficient_space",
			logging.String("free", humanize.IBytes(free)),
			logging.String("needed", humanize.IBytes(need)),
			logging.String(logging.FieldErrorHint, "free space in the output directory or choose another with --output"),
		)
		return ReasonInsufficientSpace
	}
	return ""
}

// requiredBytes estimates scratch space: intermediates copy every segment.
// Per-segment encodes are bounded by the output size, which is not known.
func requiredBytes(strategy merge.Strategy, cat catalog.Catalog) uint64 {
	switch strategy {
	case merge.RawConcatenate, merge.ByteCopyThenTranscode:
		return uint64(cat.TotalBytes())
	default:
		return 0
	}
}

// release removes scratch files and unmounts. Failures are logged only.
func (c *Controller) release(ctx context.Context, logger *slog.Logger, handle mount.Handle, paths staging.Paths) {
	for _, failure := range paths.Remove() {
		logging.WarnWithContext(logger, "cleanup failed", "cleanup_failed",
			logging.String("path", failure.Path),
			logging.Error(failure.Error),
			logging.String(logging.FieldErrorHint, "remove the path manually or run discbatch clean"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}
	if err := c.mounter.Unmount(ctx, handle); err != nil {
		logging.WarnWithContext(logger, "unmount failed", "unmount_failed",
			logging.String("mount_point", handle.MountPoint),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "unmount manually"),
			logging.String(logging.FieldImpact, "image remains mounted"),
		)
	}
}

func (c *Controller) finish(ctx context.Context, logger *slog.Logger, res Result, outcome Outcome, reason string) Result {
	res.Outcome = outcome
	res.Reason = reason
	res.Finished = c.now()

	attrs := []logging.Attr{
		logging.String("outcome", string(outcome)),
		logging.Int("outputs", len(res.Outputs)),
		logging.Duration("elapsed", res.Duration()),
	}
	if reason != "" {
		attrs = append(attrs, logging.String("reason", reason))
	}
	if outcome == OutcomePartiallyFailed {
		attrs = append(attrs, logging.Alert("partial_output"))
	}
	c.transition(logger, StateFinished, attrs...)

	if c.history != nil && !c.settings.DryRun {
		entry := history.Entry{
			RunID:    c.runID,
			Image:    res.Image.Path,
			Title:    res.Title,
			Profile:  c.settings.Profile.Name,
			Outcome:  string(outcome),
			Reason:   reason,
			Outputs:  res.Outputs,
			Segments: res.Segments,
			Bytes:    res.Bytes,
			Started:  res.Started,
			Finished: res.Finished,
		}
		if err := c.history.RecordResult(context.WithoutCancel(ctx), entry); err != nil {
			logging.WarnWithContext(logger, "failed to record result", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "result missing from history"),
			)
		}
	}
	return res
}

// classify maps the merge result to an outcome. Succeeded requires a
// non-empty catalog and no recorded errors.
func classify(res Result, reason string) Outcome {
	if reason == "" && res.Segments > 0 {
		return OutcomeSucceeded
	}
	if len(res.Outputs) > 0 {
		return OutcomePartiallyFailed
	}
	return OutcomeFailed
}

func (c *Controller) transition(logger *slog.Logger, state State, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.String(logging.FieldStage, string(state)),
		logging.String(logging.FieldEventType, "job_state"),
	)
	logger.Info("image "+string(state), logging.Args(attrs...)...)
}

func (c *Controller) outputDir(img DiscImage) string {
	if dir := strings.TrimSpace(c.settings.OutputDir); dir != "" {
		return dir
	}
	if img.Kind == KindDevice {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return img.Dir()
}

// baseName names outputs. Devices use their volume label when readable.
func (c *Controller) baseName(ctx context.Context, img DiscImage) string {
	if img.Kind != KindDevice || c.labeler == nil {
		return img.BaseName()
	}
	label, err := c.labeler(ctx, img.Path)
	if err != nil {
		c.logger.Debug("device label unavailable", logging.String("device", img.Path), logging.Error(err))
		return img.BaseName()
	}
	if name := textutil.SafeBaseName(label); name != "" {
		return name
	}
	return img.BaseName()
}

// beginRun writes the run row at most once per controller.
func (c *Controller) beginRun(ctx context.Context, images int, started time.Time) {
	if c.history == nil || c.settings.DryRun || c.runBegun {
		return
	}
	c.runBegun = true
	err := c.history.BeginRun(ctx, history.Run{
		ID:       c.runID,
		Started:  started,
		Strategy: c.settings.Strategy.String(),
		Profile:  c.settings.Profile.Name,
		Images:   images,
	})
	if err != nil {
		logging.WarnWithContext(c.logger, "failed to record run start", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history"),
		)
	}
}

// FinishRun stores the closing tallies of report. Run calls it; the watch
// loop calls it once when it stops.
func (c *Controller) FinishRun(ctx context.Context, report Report) {
	if c.history == nil || c.settings.DryRun || !c.runBegun {
		return
	}
	err := c.history.FinishRun(context.WithoutCancel(ctx), history.Run{
		ID:        c.runID,
		Finished:  report.Finished,
		Images:    len(report.Images),
		Succeeded: report.Count(OutcomeSucceeded),
		Failed:    len(report.Unprocessed()),
		Cancelled: report.Cancelled,
	})
	if err != nil {
		logging.WarnWithContext(c.logger, "failed to record run end", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run totals missing from history"),
		)
	}
}
