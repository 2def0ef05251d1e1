package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFmpegForAV1 reports the ffmpeg the Drapto library will run for the
// AV1 profile. Drapto prefers an ffmpeg that sits next to the running
// executable and falls back to PATH; the configured tools.ffmpeg is not
// consulted.
func CheckFFmpegForAV1(executable string) Status {
	executable = strings.TrimSpace(executable)
	result := Status{Requirement: Requirement{
		Name:        "FFmpeg (AV1)",
		Description: "Used by Drapto for the av1 profile",
	}}

	if candidate, ok := siblingFFmpeg(executable); ok {
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			result.Command = candidate
			result.Path = candidate
			result.Available = true
			return result
		}
	}

	if path, err := exec.LookPath("ffmpeg"); err == nil {
		result.Command = path
		result.Path = path
		result.Available = true
		return result
	}

	result.Command = "ffmpeg"
	result.Detail = `binary "ffmpeg" not found on PATH`
	if executable != "" {
		result.Detail = fmt.Sprintf(`binary "ffmpeg" not found next to %s or on PATH`, filepath.Base(executable))
	}
	return result
}

func siblingFFmpeg(executable string) (string, bool) {
	if executable == "" {
		return "", false
	}
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(executable), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
