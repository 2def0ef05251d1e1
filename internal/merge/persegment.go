package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"discbatch/internal/catalog"
	"discbatch/internal/fileutil"
	"discbatch/internal/logging"
	"discbatch/internal/profile"
	"discbatch/internal/transcode"
)

// segmentArgs keep audio aligned with video so the encoded pieces can be
// stream-copied back together.
var segmentArgs = []string{
	"-map", "0:v:0", "-map", "0:a:0",
	"-video_track_timescale", "90000",
	"-af", "apad", "-shortest",
	"-avoid_negative_ts", "make_zero", "-fflags", "+genpts",
	"-b:a", "192k",
}

// ownMappingSegmentArgs are used for profiles that select and copy streams
// themselves, where an audio filter would conflict.
var ownMappingSegmentArgs = []string{
	"-avoid_negative_ts", "make_zero", "-fflags", "+genpts",
}

var concatInputArgs = []string{"-f", "concat", "-safe", "0"}

// perSegmentStrategy encodes every segment, then stream-copies the encoded
// pieces of each target into its destination.
type perSegmentStrategy struct{}

func (perSegmentStrategy) prepare(ctx context.Context, p *plan) ([]intermediate, error) {
	engine, err := p.exec.engineFor(p.req.Profile.Engine)
	if err != nil {
		return nil, err
	}
	concat, err := p.exec.engineFor(profile.EngineFFmpeg)
	if err != nil {
		return nil, err
	}

	var out []intermediate
	for _, t := range p.targets {
		var encoded []string
		for _, g := range t.groups {
			for _, seg := range g.Segments {
				path, err := encodeSegment(ctx, p, engine, seg)
				if err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return out, ctxErr
					}
					p.report.fail(err)
					logging.WarnWithContext(p.logger, "segment encode failed; left out of concat", "segment_encode_failed",
						logging.String("segment", seg.Path),
						logging.Error(err),
						logging.String(logging.FieldImpact, "output will be missing this segment"),
					)
					continue
				}
				encoded = append(encoded, path)
			}
		}
		if len(encoded) == 0 {
			err := errors.New("no segment encoded successfully")
			p.report.Outputs = append(p.report.Outputs, Output{Index: t.index, Path: t.dest, Status: StatusFailed, Err: err})
			p.report.fail(err)
			continue
		}

		in, err := concatSegments(ctx, p, concat, t, encoded)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			p.exec.recordFailure(p.logger, p.report, t, err)
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

func encodeSegment(ctx context.Context, p *plan, engine transcode.Engine, seg catalog.Segment) (string, error) {
	prof := p.req.Profile
	stem := strings.TrimSuffix(filepath.Base(seg.Path), filepath.Ext(seg.Path))
	output := filepath.Join(p.req.WorkDir, prof.OutputName(stem))

	size := p.exec.probeSize(ctx, p.logger, prof, seg.Path)
	base := segmentArgs
	if prof.OwnMapping {
		base = ownMappingSegmentArgs
	}
	args := append(append([]string(nil), base...), prof.Args(size)...)

	p.logger.Debug("encoding segment",
		logging.String("segment", seg.Path),
		logging.String("output", output),
	)
	result, err := engine.Transcode(ctx, transcode.Request{
		Input:     seg.Path,
		Args:      args,
		Output:    output,
		Overwrite: true,
	})
	if err != nil {
		return "", &TranscodeError{Input: seg.Path, Output: output, ExitCode: result.ExitCode, Diagnostics: result.Diagnostics, Err: err}
	}
	return output, nil
}

func concatSegments(ctx context.Context, p *plan, engine transcode.Engine, t target, files []string) (intermediate, error) {
	list := p.req.ListPath
	if strings.TrimSpace(list) == "" {
		list = filepath.Join(p.req.WorkDir, p.req.BaseName+".mylist.txt")
	}
	if err := fileutil.WriteFileAtomic(list, ConcatList(files)); err != nil {
		return intermediate{}, &TranscodeError{Input: list, Output: t.dest, Err: err}
	}
	defer func() {
		if err := os.Remove(list); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("failed to remove concat list",
				logging.String("list_path", list),
				logging.Error(err),
			)
		}
	}()

	p.logger.Info("concatenating encoded segments",
		logging.Int("segments", len(files)),
		logging.String("output", t.dest),
		logging.String(logging.FieldEventType, "concat_start"),
	)
	result, err := engine.Transcode(ctx, transcode.Request{
		InputArgs: concatInputArgs,
		Input:     list,
		Args:      []string{"-c", "copy"},
		Output:    t.dest,
		Overwrite: p.req.Overwrite,
	})
	if err != nil {
		return intermediate{}, &TranscodeError{Input: list, Output: t.dest, ExitCode: result.ExitCode, Diagnostics: result.Diagnostics, Err: err}
	}
	return intermediate{target: t, path: list, done: true}, nil
}

// ConcatList renders an ffmpeg concat demuxer list for files.
func ConcatList(files []string) []byte {
	var b strings.Builder
	for _, f := range files {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(f, "'", `'\''`))
		b.WriteString("'\n")
	}
	return []byte(b.String())
}
