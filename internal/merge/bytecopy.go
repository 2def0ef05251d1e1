package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"discbatch/internal/fileutil"
	"discbatch/internal/logging"
	"discbatch/internal/services"
)

// byteCopyStrategy writes every segment into one intermediate. Unreadable
// segments are cut back out and the copy continues with the next one.
type byteCopyStrategy struct{}

func (byteCopyStrategy) prepare(ctx context.Context, p *plan) ([]intermediate, error) {
	var out []intermediate
	for _, t := range p.targets {
		in, ok, err := byteCopy(ctx, p, t)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, in)
		}
	}
	return out, nil
}

func byteCopy(ctx context.Context, p *plan, t target) (intermediate, bool, error) {
	path := p.intermediatePath(t)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return intermediate{}, false, services.Wrap(services.ErrConfiguration, stageName, "create intermediate", path, err)
	}

	buf := make([]byte, p.exec.chunkSize)
	var offset int64
	copied := 0
	for _, g := range t.groups {
		for _, seg := range g.Segments {
			if err := ctx.Err(); err != nil {
				_ = f.Close()
				return intermediate{}, false, err
			}
			n, err := fileutil.AppendFile(f, seg.Path, buf)
			if err == nil {
				offset += n
				copied++
				continue
			}
			if fileutil.IsWriteError(err) {
				_ = f.Close()
				_ = os.Remove(path)
				failIntermediate(p, t, path, err)
				return intermediate{}, false, nil
			}
			if rerr := rewind(f, offset); rerr != nil {
				_ = f.Close()
				_ = os.Remove(path)
				return intermediate{}, false, fmt.Errorf("rewind intermediate after failed segment: %w", rerr)
			}
			serr := &SegmentReadError{Path: seg.Path, Err: err}
			p.report.fail(serr)
			logging.WarnWithContext(p.logger, "segment unreadable; skipped", "segment_read_failed",
				logging.String("segment", seg.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the disc image for read errors"),
				logging.String(logging.FieldImpact, "output will be missing this segment"),
			)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return intermediate{}, false, services.Wrap(services.ErrExternalTool, stageName, "close intermediate", path, err)
	}

	if copied == 0 {
		_ = os.Remove(path)
		err := errors.New("no readable segments")
		p.report.Outputs = append(p.report.Outputs, Output{Index: t.index, Path: t.dest, Status: StatusFailed, Err: err})
		p.report.fail(err)
		return intermediate{}, false, nil
	}

	p.logger.Info("intermediate written",
		logging.String("intermediate", path),
		logging.Int("segments", copied),
		logging.Int64("intermediate_bytes", offset),
		logging.String(logging.FieldEventType, "intermediate_ready"),
	)
	return intermediate{target: t, path: path}, true, nil
}

// failIntermediate records a target whose intermediate could not be written.
// Further segments would hit the same destination, so the target is dropped.
func failIntermediate(p *plan, t target, path string, err error) {
	werr := fmt.Errorf("write intermediate %s: %w", path, err)
	p.report.Outputs = append(p.report.Outputs, Output{Index: t.index, Path: t.dest, Status: StatusFailed, Err: werr})
	p.report.fail(werr)
	logging.ErrorWithContext(p.logger, "intermediate write failed", "intermediate_write_failed",
		logging.String("intermediate", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check free space and permissions in the output directory"),
		logging.String(logging.FieldImpact, "no output for this target"),
	)
}

// rewind drops anything written past offset by a failed segment.
func rewind(f *os.File, offset int64) error {
	if err := f.Truncate(offset); err != nil {
		return err
	}
	_, err := f.Seek(offset, io.SeekStart)
	return err
}
