package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"discbatch/internal/logging"
)

// Grouping selects how segments are assigned to disc groups.
type Grouping string

const (
	// GroupSorted collects every segment, orders by (disc, sequence, path),
	// and splits on disc changes.
	GroupSorted Grouping = "sorted"
	// GroupWalkOrder assigns segments in filesystem walk order starting from
	// disc 1. A segment whose disc is lower than the current disc is dropped
	// and the current disc stays where it is. Older shell-based converters
	// moved the counter back instead, so on walks that are not monotonic
	// (01, 02, 01, 02) this mode keeps the second disc-2 segment in the open
	// group where they started a new one.
	GroupWalkOrder Grouping = "walk"
)

// ParseGrouping maps a configuration value to a Grouping.
func ParseGrouping(value string) (Grouping, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(GroupSorted):
		return GroupSorted, nil
	case string(GroupWalkOrder):
		return GroupWalkOrder, nil
	default:
		return "", fmt.Errorf("unknown grouping %q (want sorted or walk)", value)
	}
}

// Segment is one VTS_<disc>_<seq>.VOB file.
type Segment struct {
	Disc     int
	Sequence int
	Path     string
	Size     int64
}

// Group holds the playable segments of one title set in playback order.
type Group struct {
	Disc     int
	Segments []Segment
}

// Paths returns the segment paths in order.
func (g Group) Paths() []string {
	out := make([]string, len(g.Segments))
	for i, seg := range g.Segments {
		out[i] = seg.Path
	}
	return out
}

// Bytes returns the summed segment size.
func (g Group) Bytes() int64 {
	var total int64
	for _, seg := range g.Segments {
		total += seg.Size
	}
	return total
}

// Rejected records a file that looked like a segment but was not grouped.
type Rejected struct {
	Path   string
	Reason string
}

// Catalog is the ordered set of disc groups found under a root.
type Catalog struct {
	Root    string
	Groups  []Group
	Menus   []Segment
	Skipped []Rejected
}

// Empty reports whether no playable segment was found.
func (c Catalog) Empty() bool {
	return len(c.Groups) == 0
}

// SegmentCount returns the number of playable segments across all groups.
func (c Catalog) SegmentCount() int {
	n := 0
	for _, g := range c.Groups {
		n += len(g.Segments)
	}
	return n
}

// TotalBytes returns the summed size of all playable segments.
func (c Catalog) TotalBytes() int64 {
	var total int64
	for _, g := range c.Groups {
		total += g.Bytes()
	}
	return total
}

// Option configures Build.
type Option func(*builder)

// WithGrouping selects the grouping mode.
func WithGrouping(mode Grouping) Option {
	return func(b *builder) {
		if mode != "" {
			b.grouping = mode
		}
	}
}

// WithLogger attaches a logger for skipped entries.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

type builder struct {
	grouping Grouping
	logger   *slog.Logger
}

// Build walks root and returns its catalog. Only a failure to read root
// itself is an error; a root without playable segments yields an empty
// catalog.
func Build(ctx context.Context, root string, opts ...Option) (Catalog, error) {
	b := builder{grouping: GroupSorted}
	for _, opt := range opts {
		opt(&b)
	}
	logger := logging.NewComponentLogger(b.logger, "catalog")

	info, err := os.Stat(root)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog root: %w", err)
	}
	if !info.IsDir() {
		return Catalog{}, fmt.Errorf("catalog root %s: not a directory", root)
	}

	cat := Catalog{Root: root}
	var found []Segment
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logger.Debug("unreadable entry skipped", logging.String("path", path), logging.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		disc, seq, parseErr := ParseSegmentName(d.Name())
		switch {
		case errors.Is(parseErr, ErrNotSegment):
			return nil
		case parseErr != nil:
			logger.Debug("malformed segment name skipped", logging.String("path", path), logging.Error(parseErr))
			cat.Skipped = append(cat.Skipped, Rejected{Path: path, Reason: parseErr.Error()})
			return nil
		}
		seg := Segment{Disc: disc, Sequence: seq, Path: path}
		if fi, err := d.Info(); err == nil {
			seg.Size = fi.Size()
		}
		if seq == 0 {
			cat.Menus = append(cat.Menus, seg)
			return nil
		}
		found = append(found, seg)
		return nil
	})
	if walkErr != nil {
		return Catalog{}, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	switch b.grouping {
	case GroupWalkOrder:
		groups, dropped := groupWalkOrder(found)
		cat.Groups = groups
		for _, seg := range dropped {
			logging.WarnWithContext(logger, "segment dropped by walk-order grouping", "segment_dropped",
				logging.String("path", seg.Path),
				logging.Int("disc", seg.Disc),
				logging.String(logging.FieldErrorHint, "use merge.grouping = \"sorted\" to keep every title set"),
				logging.String(logging.FieldImpact, "segment content is missing from the output"),
			)
			cat.Skipped = append(cat.Skipped, Rejected{Path: seg.Path, Reason: "out of walk order"})
		}
	default:
		cat.Groups = groupSorted(found)
	}
	return cat, nil
}

func groupSorted(segments []Segment) []Group {
	sorted := append([]Segment(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Disc != sorted[j].Disc {
			return sorted[i].Disc < sorted[j].Disc
		}
		return lessSegment(sorted[i], sorted[j])
	})
	var groups []Group
	for _, seg := range sorted {
		if n := len(groups); n > 0 && groups[n-1].Disc == seg.Disc {
			groups[n-1].Segments = append(groups[n-1].Segments, seg)
			continue
		}
		groups = append(groups, Group{Disc: seg.Disc, Segments: []Segment{seg}})
	}
	return groups
}

// groupWalkOrder is the single-pass assignment: equal disc appends, a higher
// disc seals the current group, a lower disc is returned as dropped.
func groupWalkOrder(segments []Segment) ([]Group, []Segment) {
	var (
		groups  []Group
		dropped []Segment
		current = Group{Disc: 1}
	)
	seal := func() {
		if len(current.Segments) == 0 {
			return
		}
		sortGroup(current.Segments)
		groups = append(groups, current)
	}
	for _, seg := range segments {
		switch {
		case seg.Disc == current.Disc:
			current.Segments = append(current.Segments, seg)
		case seg.Disc > current.Disc:
			seal()
			current = Group{Disc: seg.Disc, Segments: []Segment{seg}}
		default:
			dropped = append(dropped, seg)
		}
	}
	seal()
	return groups, dropped
}

func sortGroup(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool { return lessSegment(segments[i], segments[j]) })
}

func lessSegment(a, b Segment) bool {
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	return a.Path < b.Path
}
