// Package fileutil holds the byte-level file helpers used by the merge
// strategies: buffered appends, ordered concatenation, and atomic writes.
package fileutil
