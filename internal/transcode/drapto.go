package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"discbatch/internal/logging"
)

// Drapto encodes to AV1 through the Drapto library. Drapto chooses its own
// codec settings, so Request.Args and Request.InputArgs are ignored.
type Drapto struct {
	logger *slog.Logger
}

// NewDrapto constructs a Drapto engine.
func NewDrapto(logger *slog.Logger) *Drapto {
	return &Drapto{logger: logging.NewComponentLogger(logger, "drapto")}
}

// Transcode encodes req.Input and moves the result to req.Output.
func (d *Drapto) Transcode(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Input) == "" {
		return Result{}, errors.New("transcode: input path required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return Result{}, errors.New("transcode: output path required")
	}
	if !req.Overwrite {
		if _, err := os.Stat(req.Output); err == nil {
			return Result{ExitCode: 1}, fmt.Errorf("%w: %s already exists", ErrEngineFailed, req.Output)
		}
	}

	// Drapto names its output after the input stem, so encode into a private
	// directory next to the destination and rename.
	stagingDir, err := os.MkdirTemp(filepath.Dir(req.Output), ".drapto-")
	if err != nil {
		return Result{}, fmt.Errorf("create drapto staging dir: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: initialise drapto: %w", ErrEngineFailed, err)
	}

	rep := newProgressReporter(logging.WithContext(ctx, d.logger))
	if _, err := encoder.EncodeWithReporter(ctx, req.Input, stagingDir, rep); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{ExitCode: -1, Diagnostics: rep.diagnostics()}, ctxErr
		}
		return Result{ExitCode: 1, Diagnostics: rep.diagnostics()}, fmt.Errorf("%w: drapto: %w", ErrEngineFailed, err)
	}

	base := filepath.Base(req.Input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	produced := filepath.Join(stagingDir, stem+".mkv")
	if err := os.Rename(produced, req.Output); err != nil {
		return Result{ExitCode: 1, Diagnostics: rep.diagnostics()}, fmt.Errorf("%w: move drapto output: %w", ErrEngineFailed, err)
	}
	return Result{Diagnostics: rep.diagnostics()}, nil
}

var _ Engine = (*Drapto)(nil)
