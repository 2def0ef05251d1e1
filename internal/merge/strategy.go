package merge

import (
	"fmt"
	"strings"
)

// Strategy selects how segments become the stream handed to the final encode.
type Strategy int

const (
	// RawConcatenate joins each group's segments byte for byte into one
	// intermediate per group, then encodes every intermediate.
	RawConcatenate Strategy = iota + 1
	// PerSegmentTranscodeThenConcat encodes each segment and stream-copies the
	// results into one output per group.
	PerSegmentTranscodeThenConcat
	// ByteCopyThenTranscode copies every segment into a single intermediate,
	// skipping unreadable segments, then encodes it.
	ByteCopyThenTranscode
)

// DefaultStrategy needs no external tool until the final encode.
const DefaultStrategy = ByteCopyThenTranscode

// ParseStrategy accepts the strategy names and their numeric aliases.
func ParseStrategy(value string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "bytecopy", "byte-copy", "3":
		return ByteCopyThenTranscode, nil
	case "raw", "1":
		return RawConcatenate, nil
	case "per-segment", "persegment", "2":
		return PerSegmentTranscodeThenConcat, nil
	default:
		return 0, fmt.Errorf("unknown merge strategy %q (want raw, per-segment, or bytecopy)", value)
	}
}

func (s Strategy) String() string {
	switch s {
	case RawConcatenate:
		return "raw"
	case PerSegmentTranscodeThenConcat:
		return "per-segment"
	case ByteCopyThenTranscode:
		return "bytecopy"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func (s Strategy) impl() (strategy, error) {
	switch s {
	case RawConcatenate:
		return rawStrategy{}, nil
	case PerSegmentTranscodeThenConcat:
		return perSegmentStrategy{}, nil
	case ByteCopyThenTranscode:
		return byteCopyStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported merge strategy %d", int(s))
	}
}
