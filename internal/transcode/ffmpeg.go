package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"discbatch/internal/logging"
	"discbatch/internal/services"
)

var commandContext = exec.CommandContext

const defaultDiagnosticLines = 20

// FFmpeg runs the ffmpeg CLI.
type FFmpeg struct {
	binary          string
	logger          *slog.Logger
	diagnosticLines int
}

// FFmpegOption configures an FFmpeg engine.
type FFmpegOption func(*FFmpeg)

// WithLogger streams encoder output at debug level.
func WithLogger(logger *slog.Logger) FFmpegOption {
	return func(f *FFmpeg) {
		f.logger = logger
	}
}

// WithDiagnosticLines sets how many trailing stderr lines are kept.
func WithDiagnosticLines(n int) FFmpegOption {
	return func(f *FFmpeg) {
		if n > 0 {
			f.diagnosticLines = n
		}
	}
}

// NewFFmpeg constructs an engine for the given binary.
func NewFFmpeg(binary string, opts ...FFmpegOption) *FFmpeg {
	f := &FFmpeg{binary: strings.TrimSpace(binary), diagnosticLines: defaultDiagnosticLines}
	if f.binary == "" {
		f.binary = "ffmpeg"
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "ffmpeg")
	return f
}

// Binary returns the executable name.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// BuildArgs returns the argument vector for req without the binary.
func BuildArgs(req Request) []string {
	args := make([]string, 0, len(req.InputArgs)+len(req.Args)+8)
	args = append(args, "-hide_banner", "-nostdin")
	if req.Overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	args = append(args, req.InputArgs...)
	args = append(args, "-i", req.Input)
	args = append(args, req.Args...)
	args = append(args, req.Output)
	return args
}

// Transcode runs ffmpeg to completion.
func (f *FFmpeg) Transcode(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Input) == "" {
		return Result{}, errors.New("transcode: input path required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return Result{}, errors.New("transcode: output path required")
	}

	args := BuildArgs(req)
	logger := logging.WithContext(ctx, f.logger)
	logger.Debug("ffmpeg starting",
		logging.String("command", f.binary+" "+strings.Join(args, " ")),
		logging.String("output", req.Output),
	)

	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = io.Discard
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, services.Wrap(services.ErrExternalTool, "transcode", "start ffmpeg", f.binary, err)
	}

	tail := newLineTail(f.diagnosticLines)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanOutputLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tail.add(line)
		logger.Debug("ffmpeg output", logging.String("line", line))
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("ffmpeg output unreadable; discarding the rest", logging.Error(err))
	}
	// ffmpeg blocks on a full stderr pipe, so the pipe is drained until EOF.
	_, _ = io.Copy(io.Discard, stderr)

	waitErr := cmd.Wait()
	result := Result{Diagnostics: tail.lines()}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, fmt.Errorf("%w: ffmpeg exited with status %d: %s", ErrEngineFailed, result.ExitCode, lastLine(result.Diagnostics))
	}
	return result, nil
}

// scanOutputLines splits on '\n' and on the '\r' ffmpeg ends each progress
// update with.
func scanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type lineTail struct {
	max int
	buf []string
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) add(line string) {
	t.buf = append(t.buf, line)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *lineTail) lines() []string {
	return append([]string(nil), t.buf...)
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return "no diagnostics"
	}
	return lines[len(lines)-1]
}

var _ Engine = (*FFmpeg)(nil)
