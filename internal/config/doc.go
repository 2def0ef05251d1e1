// Package config loads, normalizes, and validates discbatch configuration data.
//
// It supplies repository defaults (including per-platform mount commands),
// expands user paths with tilde shortcuts, reads TOML files, and honours
// environment fallbacks such as DISCBATCH_FFMPEG. The Config type centralizes
// every knob the CLI needs so tool paths, merge strategy, and output profile
// are resolved in one pass and passed explicitly to the components that use
// them.
//
// Command-line flags are layered on top through ApplyOverrides so the same
// validation runs regardless of where a value came from.
package config
