package config

import "runtime"

const (
	defaultConfigPath       = "~/.config/discbatch/config.toml"
	defaultLogDir           = "~/.local/share/discbatch/logs"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultStrategy         = "bytecopy"
	defaultGrouping         = "sorted"
	defaultChunkSizeMiB     = 1
	defaultProfile          = "h264"
	defaultCRF              = 20
	defaultSettleSeconds    = 10
	defaultOpticalDrive     = "/dev/sr0"
)

var defaultExtensions = []string{".iso"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir(),
			LogDir:   defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Mount: defaultMount(runtime.GOOS),
		Merge: Merge{
			Strategy:       defaultStrategy,
			Grouping:       defaultGrouping,
			ChunkSizeMiB:   defaultChunkSizeMiB,
			CheckFreeSpace: true,
		},
		Output: Output{
			Profile: defaultProfile,
			CRF:     defaultCRF,
		},
		Batch: Batch{
			Extensions: append([]string(nil), defaultExtensions...),
		},
		Watch: Watch{
			SettleSeconds: defaultSettleSeconds,
			Drive:         defaultOpticalDrive,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// defaultMount returns the attach/detach commands for the given platform.
// Platforms without a known command leave Mount empty and fail validation
// until the operator configures one.
func defaultMount(goos string) Mount {
	switch goos {
	case "linux":
		return Mount{
			BaseDir:        "/mnt",
			Command:        "mount",
			Args:           []string{"-o", "loop,ro", "{image}", "{mountpoint}"},
			DeviceArgs:     []string{"-o", "ro", "{image}", "{mountpoint}"},
			UnmountCommand: "umount",
			UnmountArgs:    []string{"{mountpoint}"},
		}
	case "darwin":
		attach := []string{"attach", "-nobrowse", "-readonly", "-mountpoint", "{mountpoint}", "{image}"}
		return Mount{
			BaseDir:        "/Volumes",
			Command:        "hdiutil",
			Args:           attach,
			DeviceArgs:     append([]string(nil), attach...),
			UnmountCommand: "hdiutil",
			UnmountArgs:    []string{"detach", "{mountpoint}"},
		}
	default:
		return Mount{}
	}
}
