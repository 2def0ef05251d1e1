// Package watch feeds a long-running job controller. New image files in a
// directory are queued once their size settles, and media insertion on an
// optical drive queues the drive itself. Queued images are handled one at a
// time in arrival order.
package watch
