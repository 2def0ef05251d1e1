package job

import (
	"time"

	"discbatch/internal/catalog"
	"discbatch/internal/merge"
)

// Result is the outcome of one image.
type Result struct {
	Image    DiscImage
	Title    string
	Outcome  Outcome
	Reason   string
	Outputs  []string
	Segments int
	Bytes    int64
	// Skipped is set when history showed the image already converted.
	Skipped bool
	// Catalog is kept for dry runs.
	Catalog  *catalog.Catalog
	Merge    merge.Report
	Started  time.Time
	Finished time.Time
}

// Duration is the wall time spent on the image.
func (r Result) Duration() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Report aggregates a batch.
type Report struct {
	RunID     string
	Images    []DiscImage
	Results   []Result
	Cancelled bool
	Started   time.Time
	Finished  time.Time
}

// Unprocessed lists every image that did not succeed, including images the
// batch never reached.
func (r Report) Unprocessed() []DiscImage {
	done := make(map[string]struct{}, len(r.Results))
	for _, res := range r.Results {
		if res.Outcome == OutcomeSucceeded {
			done[res.Image.Path] = struct{}{}
		}
	}
	var out []DiscImage
	for _, img := range r.Images {
		if _, ok := done[img.Path]; !ok {
			out = append(out, img)
		}
	}
	return out
}

// Count returns how many results ended with outcome.
func (r Report) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// OK reports whether every image succeeded.
func (r Report) OK() bool {
	return !r.Cancelled && len(r.Unprocessed()) == 0
}
