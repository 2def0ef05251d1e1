package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"discbatch/internal/catalog"
	"discbatch/internal/config"
	"discbatch/internal/job"
	"discbatch/internal/logging"
	"discbatch/internal/merge"
	"discbatch/internal/mount"
	"discbatch/internal/preflight"
	"discbatch/internal/profile"
)

// labelTimeout bounds the lsblk call that names device outputs.
const labelTimeout = 5 * time.Second

type convertOptions struct {
	inputs        []string
	output        string
	format        string
	crf           int
	strategy      string
	grouping      string
	recurse       bool
	overwrite     bool
	ffmpeg        string
	ffprobe       string
	skipSucceeded bool
	dryRun        bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert [inputs...]",
		Short: "Convert disc images, devices, or VIDEO_TS folders",
		Long: `Convert every input in turn. Inputs may be image files, block devices,
extracted disc folders, or directories of images (use --recurse to descend).

Each image is mounted, its title-set segments are cataloged and merged with
the selected strategy, the result is encoded with the selected profile, and
scratch files are removed. The command exits non-zero when any image is left
unprocessed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.inputs = append(opts.inputs, args...)
			return runConvert(cmd, ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.inputs, "input", "i", nil, "Input image, device, or directory (repeatable)")
	flags.StringVarP(&opts.output, "output", "o", "", "Output directory (default: alongside each input)")
	flags.StringVarP(&opts.format, "format", "f", "", "Output profile (see `discbatch profiles`)")
	flags.IntVarP(&opts.crf, "crf", "c", profile.DefaultCRF, "Quality for CRF-based profiles (0-51)")
	flags.StringVarP(&opts.strategy, "mode", "m", "", "Merge strategy: raw (1), per-segment (2), or bytecopy (3)")
	flags.StringVar(&opts.strategy, "strategy", "", "Alias for --mode")
	flags.StringVar(&opts.grouping, "grouping", "", "Segment grouping: sorted or walk")
	flags.BoolVarP(&opts.recurse, "recurse", "r", false, "Descend into sub-directories of input directories")
	flags.BoolVarP(&opts.overwrite, "yes", "y", false, "Overwrite existing outputs")
	flags.StringVarP(&opts.ffmpeg, "binary", "b", "", "ffmpeg executable")
	flags.StringVarP(&opts.ffprobe, "probe", "p", "", "ffprobe executable (empty string disables probing)")
	flags.BoolVar(&opts.skipSucceeded, "skip-succeeded", false, "Skip images that already converted with this profile")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Mount and catalog only; print the groups that would be merged")
	return cmd
}

// convertOverrides maps explicitly set flags onto config overrides.
func convertOverrides(cmd *cobra.Command, opts convertOptions) config.Overrides {
	flags := cmd.Flags()
	var o config.Overrides
	if flags.Changed("output") {
		o.OutputDir = &opts.output
	}
	if flags.Changed("format") {
		o.Profile = &opts.format
	}
	if flags.Changed("crf") {
		o.CRF = &opts.crf
	}
	if flags.Changed("mode") || flags.Changed("strategy") {
		o.Strategy = &opts.strategy
	}
	if flags.Changed("grouping") {
		o.Grouping = &opts.grouping
	}
	if flags.Changed("recurse") {
		o.Recursive = &opts.recurse
	}
	if flags.Changed("yes") {
		o.Overwrite = &opts.overwrite
	}
	if flags.Changed("binary") {
		o.FFmpeg = &opts.ffmpeg
	}
	if flags.Changed("probe") {
		o.FFprobe = &opts.ffprobe
	}
	if flags.Changed("skip-succeeded") {
		o.SkipSucceeded = &opts.skipSucceeded
	}
	return o
}

func runConvert(cmd *cobra.Command, ctx *commandContext, opts convertOptions) error {
	cfg, err := ctx.applyOverrides(convertOverrides(cmd, opts))
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	prof, err := resolveProfile(cfg)
	if err != nil {
		return err
	}
	settings, err := batchSettings(cfg, prof)
	if err != nil {
		return err
	}
	settings.DryRun = opts.dryRun

	if err := checkTools(cfg, prof, logger, opts.dryRun); err != nil {
		return err
	}

	if len(opts.inputs) == 0 {
		return errors.New("no inputs given; pass image paths or --input")
	}
	images, enumErr := job.Enumerate(opts.inputs, cfg.Batch.Recursive, cfg.Batch.Extensions)
	if enumErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", enumErr)
	}
	if len(images) == 0 {
		if enumErr != nil {
			return errUnprocessed
		}
		return errors.New("no disc images found in the given inputs")
	}

	if err := checkDirectories(cfg, outputDirsFor(cfg, images)); err != nil {
		return err
	}

	lock, err := acquireLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Release()

	var controllerOpts []job.Option
	if store := openHistory(cfg, logger); store != nil {
		defer store.Close()
		controllerOpts = append(controllerOpts, job.WithHistory(store))
	}
	controller, err := newController(cfg, settings, logger, controllerOpts...)
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report := controller.Run(signalCtx, images)

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	if opts.dryRun {
		for _, res := range report.Results {
			if res.Catalog != nil {
				printCatalog(out, res.Image.Name(), *res.Catalog)
			}
		}
	}
	printSummary(out, report, colorize)
	if ctx.logPath != "" {
		fmt.Fprintf(out, "Log: %s\n", ctx.logPath)
	}

	if enumErr != nil || !report.OK() {
		return errUnprocessed
	}
	return nil
}

// batchSettings derives the controller settings shared by convert and watch.
func batchSettings(cfg *config.Config, prof profile.Profile) (job.Settings, error) {
	strategy, err := merge.ParseStrategy(cfg.Merge.Strategy)
	if err != nil {
		return job.Settings{}, err
	}
	grouping, err := catalog.ParseGrouping(cfg.Merge.Grouping)
	if err != nil {
		return job.Settings{}, err
	}
	return job.Settings{
		Strategy:       strategy,
		Grouping:       grouping,
		Profile:        prof,
		OutputDir:      cfg.Paths.OutputDir,
		Overwrite:      cfg.Merge.Overwrite,
		CheckFreeSpace: cfg.Merge.CheckFreeSpace,
		SkipSucceeded:  cfg.Batch.SkipSucceeded,
	}, nil
}

func newController(cfg *config.Config, settings job.Settings, logger *slog.Logger, opts ...job.Option) (*job.Controller, error) {
	opts = append([]job.Option{
		job.WithLogger(logger),
		job.WithFreeSpace(preflight.FreeBytes),
		job.WithLabeler(func(ctx context.Context, device string) (string, error) {
			return mount.ReadLabel(ctx, device, labelTimeout)
		}),
	}, opts...)
	return job.NewController(newMounter(cfg, logger), newExecutor(cfg, logger), settings, opts...)
}

// checkTools fails on missing required tools. A missing ffprobe disables
// probing and validation for the batch.
func checkTools(cfg *config.Config, prof profile.Profile, logger *slog.Logger, dryRun bool) error {
	statuses := preflight.CheckSystemDeps(cfg, prof, executablePath())
	for _, status := range statuses {
		if status.Available || !status.Optional {
			continue
		}
		if status.ConfigKey == "tools.ffprobe" {
			cfg.Tools.FFprobe = ""
		}
		logging.WarnWithContext(logger, "optional tool unavailable", "dependency_missing",
			logging.String("tool", status.Name),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, status.Hint()),
			logging.String(logging.FieldImpact, status.Impact),
		)
	}

	var missing []string
	for _, status := range preflight.MissingRequired(statuses) {
		if dryRun && status.Name != "Mount" && status.Name != "Unmount" {
			continue
		}
		missing = append(missing, fmt.Sprintf("%s (%s): %s; %s", status.Name, status.Command, status.Detail, status.Hint()))
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required tools:\n  %s", strings.Join(missing, "\n  "))
	}
	return nil
}

// outputDirsFor lists the destinations of images. Devices write to the
// working directory and are not listed.
func outputDirsFor(cfg *config.Config, images []job.DiscImage) []string {
	if cfg.Paths.OutputDir != "" {
		return []string{cfg.Paths.OutputDir}
	}
	dirs := make([]string, 0, len(images))
	for _, img := range images {
		if img.Kind != job.KindDevice {
			dirs = append(dirs, img.Dir())
		}
	}
	return dirs
}

// checkDirectories creates the configured output directory and verifies
// every destination before any image is mounted.
func checkDirectories(cfg *config.Config, outputDirs []string) error {
	if cfg.Paths.OutputDir != "" {
		if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if failed := preflight.Failed(preflight.RunAll(cfg, outputDirs...)); len(failed) > 0 {
		lines := make([]string, 0, len(failed))
		for _, r := range failed {
			lines = append(lines, r.Name+": "+r.Detail)
		}
		return fmt.Errorf("preflight failed:\n  %s", strings.Join(lines, "\n  "))
	}
	return nil
}
