package preflight

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"discbatch/internal/config"
	"discbatch/internal/deps"
	"discbatch/internal/profile"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeBytes returns the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}

// CheckFreeSpace verifies that path's filesystem can hold need more bytes.
func CheckFreeSpace(name, path string, need uint64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	detail := fmt.Sprintf("%s free, %s needed", humanize.IBytes(free), humanize.IBytes(need))
	if free < need {
		return Result{Name: name, Detail: "insufficient disk space: " + detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external tools required by cfg and the
// selected output profile. Both convert and check use this list.
func CheckSystemDeps(cfg *config.Config, prof profile.Profile, executable string) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for encoding",
			ConfigKey:   "tools.ffmpeg",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Probes source resolution and validates outputs",
			ConfigKey:   "tools.ffprobe",
			Impact:      "resolution probing and output validation disabled",
			Optional:    true,
		},
	}
	if cfg.Mount.Command != "" {
		requirements = append(requirements, deps.Requirement{
			Name:        "Mount",
			Command:     cfg.Mount.Command,
			Description: "Attaches disc images",
			ConfigKey:   "mount.command",
		})
	}
	if cfg.Mount.UnmountCommand != "" && cfg.Mount.UnmountCommand != cfg.Mount.Command {
		requirements = append(requirements, deps.Requirement{
			Name:        "Unmount",
			Command:     cfg.Mount.UnmountCommand,
			Description: "Detaches disc images",
			ConfigKey:   "mount.unmount_command",
		})
	}
	statuses := deps.CheckBinaries(requirements)
	if prof.Engine == profile.EngineDrapto {
		statuses = append(statuses, deps.CheckFFmpegForAV1(executable))
	}
	return statuses
}

// MissingRequired returns the required tools that are unavailable.
func MissingRequired(statuses []deps.Status) []deps.Status {
	var missing []deps.Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
