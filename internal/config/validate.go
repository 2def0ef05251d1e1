package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	validStrategies = []string{"raw", "per-segment", "bytecopy", "1", "2", "3"}
	validGroupings  = []string{"sorted", "walk"}
	validLogFormats = []string{"console", "json"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateMount(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTools() error {
	if strings.TrimSpace(c.Tools.FFmpeg) == "" {
		return errors.New("tools.ffmpeg must be set")
	}
	return nil
}

func (c *Config) validateMount() error {
	if c.Mount.Command == "" {
		return errors.New("mount.command must be set on this platform (no built-in default)")
	}
	if c.Mount.UnmountCommand == "" {
		return errors.New("mount.unmount_command must be set")
	}
	if strings.TrimSpace(c.Mount.BaseDir) == "" {
		return errors.New("mount.base_dir must be set")
	}
	if !containsPlaceholder(c.Mount.Args, "{image}") {
		return errors.New("mount.args must reference {image}")
	}
	if !containsPlaceholder(c.Mount.UnmountArgs, "{mountpoint}") {
		return errors.New("mount.unmount_args must reference {mountpoint}")
	}
	return nil
}

func (c *Config) validateMerge() error {
	if !oneOf(c.Merge.Strategy, validStrategies) {
		return fmt.Errorf("merge.strategy must be one of %s (got %q)", strings.Join(validStrategies, ", "), c.Merge.Strategy)
	}
	if !oneOf(c.Merge.Grouping, validGroupings) {
		return fmt.Errorf("merge.grouping must be one of %s (got %q)", strings.Join(validGroupings, ", "), c.Merge.Grouping)
	}
	if c.Merge.ChunkSizeMiB < 0 || c.Merge.ChunkSizeMiB > 256 {
		return errors.New("merge.chunk_size_mib must be between 1 and 256")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.CRF < 0 || c.Output.CRF > 51 {
		return errors.New("output.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.SettleSeconds < 0 {
		return errors.New("watch.settle_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !oneOf(c.Logging.Format, validLogFormats) {
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	if !oneOf(c.Logging.Level, validLogLevels) {
		return fmt.Errorf("logging.level must be one of %s (got %q)", strings.Join(validLogLevels, ", "), c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}

func containsPlaceholder(args []string, placeholder string) bool {
	for _, arg := range args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}
