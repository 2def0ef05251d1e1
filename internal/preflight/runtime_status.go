package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DiscProbe reports the current optical-drive snapshot.
type DiscProbe struct {
	Detected bool
	Device   string
	Label    string
	FSType   string
}

// ProbeDisc reads the label of the medium in device via lsblk.
func ProbeDisc(ctx context.Context, device string) DiscProbe {
	device = strings.TrimSpace(device)
	if device == "" {
		device = "/dev/sr0"
	}
	if _, err := exec.LookPath("lsblk"); err != nil {
		return DiscProbe{Device: device}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "lsblk", "-no", "LABEL,FSTYPE", device).Output()
	if err != nil {
		return DiscProbe{Device: device}
	}
	return parseProbe(device, string(output))
}

func parseProbe(device, output string) DiscProbe {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) == 0 {
		return DiscProbe{Device: device}
	}
	probe := DiscProbe{Detected: true, Device: device, Label: "Unknown"}
	switch len(fields) {
	case 1:
		probe.FSType = strings.ToLower(fields[0])
	default:
		probe.Label = strings.Join(fields[:len(fields)-1], " ")
		probe.FSType = strings.ToLower(fields[len(fields)-1])
	}
	return probe
}

// DiscDetail renders a display-friendly summary for the check command.
func (p DiscProbe) DiscDetail() string {
	if !p.Detected {
		return "No disc detected"
	}
	if p.FSType == "" {
		return fmt.Sprintf("'%s' on %s", p.Label, p.Device)
	}
	return fmt.Sprintf("%s disc '%s' on %s", p.FSType, p.Label, p.Device)
}
