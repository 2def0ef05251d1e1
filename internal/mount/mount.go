package mount

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"discbatch/internal/config"
	"discbatch/internal/logging"
)

var commandContext = exec.CommandContext

var (
	// ErrMountFailed marks an image that could not be attached.
	ErrMountFailed = errors.New("mount failed")
	// ErrUnmountFailed marks a mount point that could not be released.
	ErrUnmountFailed = errors.New("unmount failed")
)

const (
	mountPointPrefix = "iso_volume_"
	maxMountPoints   = 64
)

// Handle is an attached image. Owned handles were mounted by this process
// and must be released with Unmount.
type Handle struct {
	ImagePath  string
	Root       string
	MountPoint string
	Owned      bool
}

// Mounter attaches disc images to the filesystem.
type Mounter interface {
	Mount(ctx context.Context, imagePath string) (Handle, error)
	Unmount(ctx context.Context, h Handle) error
}

// CommandMounter runs the configured attach and detach commands.
type CommandMounter struct {
	cfg    config.Mount
	logger *slog.Logger
}

// NewCommandMounter builds a mounter from the mount configuration.
func NewCommandMounter(cfg config.Mount, logger *slog.Logger) *CommandMounter {
	return &CommandMounter{cfg: cfg, logger: logging.NewComponentLogger(logger, "mount")}
}

// Mount attaches imagePath. Directories are used in place; files and block
// devices are mounted read-only under a freshly claimed iso_volume_N.
func (m *CommandMounter) Mount(ctx context.Context, imagePath string) (Handle, error) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %w", ErrMountFailed, err)
	}
	if info.IsDir() {
		m.logger.Debug("using directory in place", logging.String("image", imagePath))
		return Handle{ImagePath: imagePath, Root: imagePath}, nil
	}

	template := m.cfg.Args
	if info.Mode()&os.ModeDevice != 0 && len(m.cfg.DeviceArgs) > 0 {
		template = m.cfg.DeviceArgs
	}

	mountPoint, err := claimMountPoint(m.cfg.BaseDir)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %w", ErrMountFailed, err)
	}

	args := expandArgs(template, imagePath, mountPoint)
	m.logger.Info("mounting image",
		logging.String("image", imagePath),
		logging.String("mount_point", mountPoint),
		logging.String("command", m.cfg.Command),
		logging.Strings("args", args),
	)
	if out, err := run(ctx, m.cfg.Command, args); err != nil {
		_ = os.Remove(mountPoint)
		return Handle{}, fmt.Errorf("%w: %s %s: %w%s", ErrMountFailed, m.cfg.Command, imagePath, err, detail(out))
	}
	return Handle{ImagePath: imagePath, Root: mountPoint, MountPoint: mountPoint, Owned: true}, nil
}

// Unmount releases an owned handle and removes its mount point directory.
func (m *CommandMounter) Unmount(ctx context.Context, h Handle) error {
	if !h.Owned {
		return nil
	}
	args := expandArgs(m.cfg.UnmountArgs, h.ImagePath, h.MountPoint)
	m.logger.Info("unmounting image",
		logging.String("image", h.ImagePath),
		logging.String("mount_point", h.MountPoint),
	)
	if out, err := run(ctx, m.cfg.UnmountCommand, args); err != nil {
		return fmt.Errorf("%w: %s: %w%s", ErrUnmountFailed, h.MountPoint, err, detail(out))
	}
	if err := os.Remove(h.MountPoint); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove mount point %s: %w", ErrUnmountFailed, h.MountPoint, err)
	}
	return nil
}

// claimMountPoint creates the first free iso_volume_N under base. Mkdir
// fails on an existing name, so two claims never share a directory.
func claimMountPoint(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("mount base directory not configured")
	}
	for i := 0; i < maxMountPoints; i++ {
		candidate := filepath.Join(base, mountPointPrefix+strconv.Itoa(i))
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return "", fmt.Errorf("create mount point: %w", err)
	}
	return "", fmt.Errorf("no free mount point under %s", base)
}

func expandArgs(template []string, image, mountPoint string) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		arg = strings.ReplaceAll(arg, "{image}", image)
		arg = strings.ReplaceAll(arg, "{mountpoint}", mountPoint)
		out[i] = arg
	}
	return out
}

func run(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := commandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

func detail(out []byte) string {
	text := strings.TrimSpace(string(out))
	if text == "" {
		return ""
	}
	return ": " + text
}

var _ Mounter = (*CommandMounter)(nil)
