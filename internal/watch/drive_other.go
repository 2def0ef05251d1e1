//go:build !linux

package watch

import (
	"context"

	"discbatch/internal/logging"
)

func (w *Watcher) watchDrive(context.Context) {
	logging.WarnWithContext(w.logger, "drive watching requires linux", "netlink_unsupported",
		logging.String("device", w.opts.Drive),
		logging.String(logging.FieldImpact, "disc insertion is not detected"),
	)
}
