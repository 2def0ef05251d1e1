//go:build linux

package watch

import (
	"context"
	"strings"

	"github.com/pilebones/go-udev/netlink"

	"discbatch/internal/job"
	"discbatch/internal/logging"
)

// watchDrive listens for udev media events on the configured drive. A
// netlink connection failure disables drive watching but leaves the
// directory watcher running.
func (w *Watcher) watchDrive(ctx context.Context) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(w.logger, "failed to connect to netlink socket", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure discbatch may open netlink sockets"),
			logging.String(logging.FieldImpact, "disc insertion is not detected"),
		)
		return
	}
	defer conn.Close()

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, driveMatcher())
	defer close(quit)

	w.logger.Info("watching drive",
		logging.String("device", w.opts.Drive),
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case uevent := <-queue:
			device := deviceName(uevent.Env)
			if device == "" || device != w.opts.Drive {
				w.logger.Debug("ignoring media event",
					logging.String("device", device),
					logging.String("action", string(uevent.Action)),
				)
				continue
			}
			w.logger.Info("disc media detected",
				logging.String("device", device),
				logging.String("action", string(uevent.Action)),
				logging.String(logging.FieldEventType, "netlink_disc_detected"),
			)
			w.Enqueue(job.DiscImage{Path: device, Kind: job.KindDevice})
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "disc detection may be affected"),
			)
		}
	}
}

// driveMatcher matches SUBSYSTEM=block, ID_CDROM=1, ID_CDROM_MEDIA=1 on add
// or change.
func driveMatcher() netlink.Matcher {
	action := "change|add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM":      "block",
			"ID_CDROM":       "1",
			"ID_CDROM_MEDIA": "1",
		},
	})
	return rules
}

// deviceName prefers DEVNAME and falls back to the last DEVPATH element.
func deviceName(env map[string]string) string {
	if name := env["DEVNAME"]; name != "" {
		if !strings.HasPrefix(name, "/") {
			return "/dev/" + name
		}
		return name
	}
	devpath := strings.TrimRight(env["DEVPATH"], "/")
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
