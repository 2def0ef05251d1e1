package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotSegment reports a file name that is not a VTS video object at all.
	ErrNotSegment = errors.New("not a video object segment")
	// ErrMalformed reports a VTS_*.VOB name whose disc or sequence cannot be parsed.
	ErrMalformed = errors.New("malformed segment name")
)

const (
	segmentPrefix = "VTS_"
	segmentExt    = ".VOB"
)

// ParseSegmentName extracts the disc and sequence numbers from a name of the
// form VTS_<disc>_<seq>.VOB. The prefix and extension are matched
// case-sensitively. Sequence 0 (the title-set menu) parses successfully;
// callers decide whether to keep it.
func ParseSegmentName(name string) (disc, sequence int, err error) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentExt) {
		return 0, 0, ErrNotSegment
	}
	core := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentExt)
	discPart, seqPart, ok := strings.Cut(core, "_")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q has no sequence number", ErrMalformed, name)
	}
	disc, err = parseField(discPart)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q disc: %v", ErrMalformed, name, err)
	}
	if disc == 0 {
		return 0, 0, fmt.Errorf("%w: %q disc must be positive", ErrMalformed, name)
	}
	sequence, err = parseField(seqPart)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q sequence: %v", ErrMalformed, name, err)
	}
	return disc, sequence, nil
}

func parseField(value string) (int, error) {
	if value == "" {
		return 0, errors.New("empty")
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return n, nil
}
