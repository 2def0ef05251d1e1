package mount

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReadLabel returns the filesystem label of a block device from lsblk.
func ReadLabel(ctx context.Context, device string, timeout time.Duration) (string, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return "", errors.New("no device specified")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := commandContext(ctx, "lsblk", "-P", "-o", "LABEL,FSTYPE", device).Output()
	if err != nil {
		return "", fmt.Errorf("run lsblk: %w", err)
	}
	label, fstype := ParseLSBLK(string(output))
	if label == "" || fstype == "" {
		return "", errors.New("no disc label found")
	}
	return label, nil
}

// ParseLSBLK returns the first LABEL and FSTYPE pair in lsblk -P output.
func ParseLSBLK(output string) (label, fstype string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := parsePairs(line)
		if len(fields) == 0 {
			continue
		}
		return strings.TrimSpace(fields["LABEL"]), strings.TrimSpace(fields["FSTYPE"])
	}
	return "", ""
}

// parsePairs splits KEY="value" pairs; quoted values may contain spaces.
func parsePairs(line string) map[string]string {
	out := make(map[string]string)
	for line != "" {
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			break
		}
		key := strings.TrimSpace(line[:eq])
		rest := line[eq+1:]
		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				value, rest = rest[1:], ""
			} else {
				value, rest = rest[1:end+1], rest[end+2:]
			}
		} else {
			sp := strings.IndexByte(rest, ' ')
			if sp < 0 {
				value, rest = rest, ""
			} else {
				value, rest = rest[:sp], rest[sp:]
			}
		}
		out[key] = value
		line = strings.TrimSpace(rest)
	}
	return out
}
