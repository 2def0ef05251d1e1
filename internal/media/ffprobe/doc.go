// Package ffprobe wraps the ffprobe CLI.
//
// Resolution answers the single question the merge pipeline asks (what frame
// size does this file have) and distinguishes a missing tool
// (ErrProbeUnavailable) from a failed probe (ErrProbeFailed). Inspect decodes
// the full JSON stream listing for the probe command and output validation.
package ffprobe
