// Package textutil provides display titles and filesystem-safe names for
// disc images and volume labels.
package textutil
