package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	if err := c.normalizeMount(); err != nil {
		return err
	}
	c.normalizeMerge()
	c.normalizeOutput()
	c.normalizeBatch()
	c.normalizeWatch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
			return fmt.Errorf("paths.output_dir: %w", err)
		}
	} else {
		c.Paths.OutputDir = ""
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if value, ok := os.LookupEnv("DISCBATCH_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = strings.TrimSpace(value)
	}
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if value, ok := os.LookupEnv("DISCBATCH_FFPROBE"); ok {
		c.Tools.FFprobe = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeMount() error {
	c.Mount.Command = strings.TrimSpace(c.Mount.Command)
	c.Mount.UnmountCommand = strings.TrimSpace(c.Mount.UnmountCommand)
	if strings.TrimSpace(c.Mount.BaseDir) != "" {
		var err error
		if c.Mount.BaseDir, err = expandPath(c.Mount.BaseDir); err != nil {
			return fmt.Errorf("mount.base_dir: %w", err)
		}
	}
	if len(c.Mount.DeviceArgs) == 0 && len(c.Mount.Args) > 0 {
		c.Mount.DeviceArgs = append([]string(nil), c.Mount.Args...)
	}
	return nil
}

func (c *Config) normalizeMerge() {
	c.Merge.Strategy = strings.ToLower(strings.TrimSpace(c.Merge.Strategy))
	if c.Merge.Strategy == "" {
		c.Merge.Strategy = defaultStrategy
	}
	c.Merge.Grouping = strings.ToLower(strings.TrimSpace(c.Merge.Grouping))
	if c.Merge.Grouping == "" {
		c.Merge.Grouping = defaultGrouping
	}
	if c.Merge.ChunkSizeMiB == 0 {
		c.Merge.ChunkSizeMiB = defaultChunkSizeMiB
	}
}

func (c *Config) normalizeOutput() {
	c.Output.Profile = strings.TrimSpace(c.Output.Profile)
	if c.Output.Profile == "" {
		c.Output.Profile = defaultProfile
	}
}

func (c *Config) normalizeBatch() {
	seen := make(map[string]struct{}, len(c.Batch.Extensions))
	exts := make([]string, 0, len(c.Batch.Extensions))
	for _, ext := range c.Batch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Batch.Extensions = exts
}

func (c *Config) normalizeWatch() {
	c.Watch.Drive = strings.TrimSpace(c.Watch.Drive)
	if c.Watch.SettleSeconds == 0 {
		c.Watch.SettleSeconds = defaultSettleSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
