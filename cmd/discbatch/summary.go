package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"discbatch/internal/catalog"
	"discbatch/internal/job"
)

// printSummary renders the per-image table and the unprocessed list.
func printSummary(out io.Writer, report job.Report, colorize bool) {
	if len(report.Results) > 0 {
		rows := make([][]string, 0, len(report.Results))
		var segments int
		var bytes int64
		for _, res := range report.Results {
			segments += res.Segments
			bytes += res.Bytes
			outputs := make([]string, 0, len(res.Outputs))
			for _, path := range res.Outputs {
				outputs = append(outputs, filepath.Base(path))
			}
			rows = append(rows, []string{
				res.Image.Name(),
				paint(string(res.Outcome), outcomeKind(res.Outcome), colorize),
				strings.Join(outputs, "\n"),
				strconv.Itoa(res.Segments),
				formatBytes(uint64(max(res.Bytes, 0))),
				formatDuration(res.Duration()),
				res.Reason,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Image", "Outcome", "Outputs", "Segments", "Size", "Time", "Reason"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			withFooter("Total", "", "", strconv.Itoa(segments), formatBytes(uint64(max(bytes, 0))), formatDuration(report.Finished.Sub(report.Started)), ""),
			withPlainStyle(!colorize),
		))
	}

	fmt.Fprintf(out, "Run %s: %d succeeded, %d partially failed, %d failed in %s\n",
		report.RunID,
		report.Count(job.OutcomeSucceeded),
		report.Count(job.OutcomePartiallyFailed),
		report.Count(job.OutcomeFailed),
		formatDuration(report.Finished.Sub(report.Started)),
	)
	if report.Cancelled {
		fmt.Fprintln(out, paint("Batch cancelled", statusWarn, colorize))
	}

	unprocessed := report.Unprocessed()
	if len(unprocessed) == 0 {
		return
	}
	fmt.Fprintln(out, paint(fmt.Sprintf("Unprocessed images (%d):", len(unprocessed)), statusError, colorize))
	for _, img := range unprocessed {
		fmt.Fprintf(out, "  %s\n", img.Path)
	}
}

// printCatalog renders the groups found under one image.
func printCatalog(out io.Writer, name string, cat catalog.Catalog) {
	fmt.Fprintf(out, "%s: %d groups, %d segments, %s\n",
		name, len(cat.Groups), cat.SegmentCount(), formatBytes(uint64(max(cat.TotalBytes(), 0))))
	if cat.Empty() {
		fmt.Fprintln(out, "  no playable segments found")
	} else {
		rows := make([][]string, 0, len(cat.Groups))
		for i, g := range cat.Groups {
			files := make([]string, 0, len(g.Segments))
			for _, seg := range g.Segments {
				files = append(files, filepath.Base(seg.Path))
			}
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				strconv.Itoa(g.Disc),
				strconv.Itoa(len(g.Segments)),
				formatBytes(uint64(max(g.Bytes(), 0))),
				strings.Join(files, " "),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Group", "Title set", "Segments", "Size", "Files"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	}
	if len(cat.Menus) > 0 {
		fmt.Fprintf(out, "  %d menu segments excluded\n", len(cat.Menus))
	}
	for _, rej := range cat.Skipped {
		fmt.Fprintf(out, "  skipped %s: %s\n", filepath.Base(rej.Path), rej.Reason)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

func formatBytes(n uint64) string {
	return humanize.IBytes(n)
}
