// Package profile defines the output formats a merged disc can be encoded to.
//
// Profiles are immutable templates: Args renders a fresh argument list for
// every encode, substituting the configured CRF and either the profile's fixed
// frame size or a probed one.
package profile
