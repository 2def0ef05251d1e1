// Package catalog discovers the video object segments on a mounted disc and
// orders them for playback.
//
// Segments are files named VTS_<disc>_<seq>.VOB. Sequence 0 is the title-set
// menu and is reported separately, never merged. Playable segments are
// grouped per disc (title set) and sorted by numeric sequence, so VTS_01_10
// follows VTS_01_9.
package catalog
