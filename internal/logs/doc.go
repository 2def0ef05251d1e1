// Package logs reads the per-run session log files written when file logging
// is enabled.
//
// Latest finds the newest session log in a directory. Tail returns the last N
// lines of a file together with the byte offset to resume from, and Follow
// keeps emitting appended lines until the context ends.
package logs
