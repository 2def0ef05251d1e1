// Package history records convert runs and per-image outcomes in SQLite.
//
// The store backs the history command and the skip_succeeded option, which
// skips images that already converted with the same profile. Schema changes
// are added as new files under migrations/ and applied in name order.
package history
