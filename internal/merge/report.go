package merge

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the fate of one destination file.
type Status string

const (
	StatusEncoded        Status = "encoded"
	StatusNotOverwritten Status = "not overwritten"
	StatusFailed         Status = "failed"
)

// Output records one destination and how it was handled.
type Output struct {
	// Index is the 1-based output number; single outputs use 1.
	Index  int
	Path   string
	Status Status
	Err    error
}

// Report is the result of one Execute call.
type Report struct {
	Outputs       []Output
	Intermediates []string
	Errors        []error
}

// HasErrors reports whether any segment or encode failed.
func (r Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// Produced returns the destinations that exist after the run, whether
// freshly encoded or kept because overwrite was off.
func (r Report) Produced() []string {
	var out []string
	for _, o := range r.Outputs {
		if o.Status == StatusEncoded || o.Status == StatusNotOverwritten {
			out = append(out, o.Path)
		}
	}
	return out
}

// Count returns how many outputs ended with status.
func (r Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outputs {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Err joins every recorded error.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

func (r *Report) fail(err error) {
	r.Errors = append(r.Errors, err)
}

// SegmentReadError reports a segment that could not be copied.
type SegmentReadError struct {
	Path string
	Err  error
}

func (e *SegmentReadError) Error() string {
	return fmt.Sprintf("read segment %s: %v", e.Path, e.Err)
}

func (e *SegmentReadError) Unwrap() error {
	return e.Err
}

// TranscodeError reports a failed encode or concat invocation.
type TranscodeError struct {
	Input       string
	Output      string
	ExitCode    int
	Diagnostics []string
	Err         error
}

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("transcode %s -> %s", e.Input, e.Output)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	switch {
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	case len(e.Diagnostics) > 0:
		msg += ": " + strings.TrimSpace(e.Diagnostics[len(e.Diagnostics)-1])
	}
	return msg
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}
