// Package logging assembles structured slog loggers and formatting helpers used
// across discbatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing (stdout plus an optional per-run log file), and exposes
// context-aware helpers so pipeline code automatically tags log lines with the
// run ID, the image being processed, and the job stage. The package also
// provides a no-op logger for tests and session log retention.
package logging
