// Package job drives disc images through the conversion state machine.
//
// Each image moves pending, mounted, cataloged, merging, cleaned, and
// finished in order. Scratch cleanup and unmount run for every image that
// was mounted, including failed and cancelled ones. A Controller processes
// a batch strictly sequentially and reports which images remain
// unprocessed so callers can set the exit status.
//
// The package also enumerates inputs into DiscImage values and provides the
// host-wide lock that keeps two controllers from sharing mount points.
package job
