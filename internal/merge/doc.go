// Package merge turns a segment catalog into encoded output files.
//
// Three strategies share one encode tail. RawConcatenate joins each title
// set byte for byte into its own intermediate. ByteCopyThenTranscode copies
// every readable segment into a single intermediate and isolates read
// failures per segment. PerSegmentTranscodeThenConcat encodes each segment
// and stream-copies the pieces together with the ffmpeg concat demuxer.
//
// Existing destinations are reported as not overwritten before any copy,
// probe, or encode runs when overwrite is off.
package merge
