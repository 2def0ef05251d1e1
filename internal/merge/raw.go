package merge

import (
	"context"
	"errors"
	"os"

	"discbatch/internal/fileutil"
	"discbatch/internal/logging"
)

// rawStrategy concatenates each target's segments byte for byte. A segment
// that cannot be read drops the whole intermediate for its target.
type rawStrategy struct{}

func (rawStrategy) prepare(ctx context.Context, p *plan) ([]intermediate, error) {
	var out []intermediate
	for _, t := range p.targets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		path := p.intermediatePath(t)
		var sources []string
		for _, g := range t.groups {
			sources = append(sources, g.Paths()...)
		}

		written, err := fileutil.ConcatFiles(path, sources, p.exec.chunkSize)
		if fileutil.IsWriteError(err) {
			failIntermediate(p, t, path, err)
			continue
		}
		if err != nil {
			var se *fileutil.SourceError
			if errors.As(err, &se) {
				err = &SegmentReadError{Path: se.Path, Err: se.Err}
			}
			p.report.Outputs = append(p.report.Outputs, Output{Index: t.index, Path: t.dest, Status: StatusFailed, Err: err})
			p.report.fail(err)
			logging.WarnWithContext(p.logger, "concatenation failed; title set skipped", "segment_read_failed",
				logging.String("intermediate", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the disc image for read errors or try the bytecopy strategy"),
				logging.String(logging.FieldImpact, "no output for this title set"),
			)
			_ = os.Remove(path)
			continue
		}
		p.logger.Info("intermediate written",
			logging.String("intermediate", path),
			logging.Int("segments", len(sources)),
			logging.Int64("intermediate_bytes", written),
			logging.String(logging.FieldEventType, "intermediate_ready"),
		)
		out = append(out, intermediate{target: t, path: path})
	}
	return out, nil
}
