package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"discbatch/internal/config"
	"discbatch/internal/history"
	"discbatch/internal/job"
	"discbatch/internal/logging"
	"discbatch/internal/media/ffprobe"
	"discbatch/internal/merge"
	"discbatch/internal/mount"
	"discbatch/internal/profile"
	"discbatch/internal/transcode"
)

// errUnprocessed signals a batch that left images unprocessed. The summary
// has already been printed, so main only sets the exit status.
var errUnprocessed = errors.New("some images were not processed")

type commandContext struct {
	configFlag *string
	verbose    *bool
	logToFile  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	logger  *slog.Logger
	logPath string
}

func newCommandContext(configFlag *string, verbose, logToFile *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
		logToFile:  logToFile,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		var overrides config.Overrides
		if c.verbose != nil && *c.verbose {
			level := "debug"
			overrides.LogLevel = &level
		}
		if c.logToFile != nil && *c.logToFile {
			enabled := true
			overrides.LogToFile = &enabled
		}
		if err := cfg.ApplyOverrides(overrides); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// applyOverrides layers command flags on the loaded config.
func (c *commandContext) applyOverrides(o config.Overrides) (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(o); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// ensureLogger builds the session logger once, after flag overrides.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, logPath, err := logging.NewFromConfig(cfg, time.Now())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if logPath != "" {
		logging.PruneSessionLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)
	}
	c.logger = logger
	c.logPath = logPath
	return logger, nil
}

// resolveProfile returns the configured output profile with its CRF applied.
func resolveProfile(cfg *config.Config) (profile.Profile, error) {
	return profile.Resolve(cfg.Output.Profile, cfg.Output.CRF)
}

// newExecutor wires the encoders, probe, and validator from cfg.
func newExecutor(cfg *config.Config, logger *slog.Logger) *merge.Executor {
	prober := ffprobe.Prober{Binary: cfg.FFprobeBinary()}
	return merge.NewExecutor(
		merge.WithEngine(profile.EngineFFmpeg, transcode.NewFFmpeg(cfg.FFmpegBinary(), transcode.WithLogger(logger))),
		merge.WithEngine(profile.EngineDrapto, transcode.NewDrapto(logger)),
		merge.WithProber(prober),
		merge.WithValidator(prober),
		merge.WithChunkSize(cfg.ChunkSize()),
		merge.WithLogger(logger),
	)
}

// openHistory returns the history store, or nil when history is disabled.
// A store that cannot be opened is reported and skipped.
func openHistory(cfg *config.Config, logger *slog.Logger) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "results are not recorded and --skip-succeeded is ignored"),
		)
		return nil
	}
	return store
}

func newMounter(cfg *config.Config, logger *slog.Logger) *mount.CommandMounter {
	return mount.NewCommandMounter(cfg.Mount, logger)
}

// acquireLock takes the single-controller lock for convert and watch.
func acquireLock(cfg *config.Config) (*job.Lock, error) {
	lock, err := job.AcquireLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, job.ErrLocked) {
			return nil, fmt.Errorf("%w; wait for it to finish", err)
		}
		return nil, err
	}
	return lock, nil
}

func executablePath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return exe
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
