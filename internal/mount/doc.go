// Package mount attaches disc images read-only for cataloging and releases
// them afterwards. Commands come from configuration so each platform can
// supply its own tool.
package mount
