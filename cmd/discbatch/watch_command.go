package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"discbatch/internal/config"
	"discbatch/internal/job"
	"discbatch/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var drive string
	var noDrive bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Convert images as they appear in a directory or drive",
		Long: `Keep one controller running and convert new image files dropped into dir
once their size has settled, and discs inserted into the optical drive.
Images are converted one at a time until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var o config.Overrides
			if cmd.Flags().Changed("drive") {
				o.WatchDrive = &drive
			}
			cfg, err := ctx.applyOverrides(o)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var dir string
			if len(args) == 1 {
				dir, err = config.ExpandPath(args[0])
				if err != nil {
					return err
				}
			}
			driveDevice := cfg.Watch.Drive
			if noDrive {
				driveDevice = ""
			}
			if dir == "" && driveDevice == "" {
				return errors.New("nothing to watch; pass a directory or configure watch.drive")
			}

			prof, err := resolveProfile(cfg)
			if err != nil {
				return err
			}
			settings, err := batchSettings(cfg, prof)
			if err != nil {
				return err
			}
			if err := checkTools(cfg, prof, logger, false); err != nil {
				return err
			}
			var outputDirs []string
			if dir != "" && cfg.Paths.OutputDir == "" {
				outputDirs = []string{dir}
			}
			if err := checkDirectories(cfg, outputDirs); err != nil {
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

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			session := job.Report{RunID: controller.RunID(), Started: time.Now()}
			watcher, err := watch.New(watch.Options{
				Dir:          dir,
				Extensions:   cfg.Batch.Extensions,
				Settle:       time.Duration(cfg.Watch.SettleSeconds) * time.Second,
				Drive:        driveDevice,
				ScanExisting: true,
				Logger:       logger,
			}, func(ctx context.Context, img job.DiscImage) {
				res := controller.Process(ctx, img)
				session.Images = append(session.Images, img)
				session.Results = append(session.Results, res)
				if res.Reason == job.ReasonCancelled {
					session.Cancelled = true
				}
				line := fmt.Sprintf("%s: %s", img.Name(), res.Outcome)
				if res.Reason != "" {
					line += " (" + res.Reason + ")"
				}
				fmt.Fprintln(out, renderStatusLine("Image", outcomeKind(res.Outcome), line, colorize))
			})
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			fmt.Fprintf(out, "Watching (run %s); press Ctrl+C to stop\n", controller.RunID())
			runErr := watcher.Run(signalCtx)
			session.Finished = time.Now()
			controller.FinishRun(signalCtx, session)
			return runErr
		},
	}

	cmd.Flags().StringVar(&drive, "drive", "", "Optical drive to watch (default: watch.drive)")
	cmd.Flags().BoolVar(&noDrive, "no-drive", false, "Watch the directory only")
	return cmd
}
