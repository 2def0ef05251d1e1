// Package services defines shared helpers consumed by the job controller and
// the adapters around external tools.
//
// Key responsibilities:
//   - Context helpers that stamp the batch run ID, the image being processed,
//     and the current job stage for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (configuration vs external tool vs transient) without string
//     matching.
//
// Use these helpers when wiring new pipeline code so error handling and
// observability stay uniform across the batch.
package services
