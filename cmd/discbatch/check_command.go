package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"discbatch/internal/job"
	"discbatch/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check dependencies, directories, and the controller lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failed := false

			fmt.Fprintln(out, strings.Join(renderSectionHeader("Configuration", colorize), "\n"))
			configDetail := ctx.configPath
			if configDetail == "" {
				configDetail = "defaults"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configDetail, colorize))
			prof, err := resolveProfile(cfg)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Profile", statusError, err.Error(), colorize))
				failed = true
			} else {
				fmt.Fprintln(out, renderStatusLine("Profile", statusOK, prof.Name, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Strategy", statusInfo, cfg.Merge.Strategy+" / "+cfg.Merge.Grouping, colorize))

			fmt.Fprintln(out)
			fmt.Fprintln(out, strings.Join(renderSectionHeader("Dependencies", colorize), "\n"))
			for _, status := range preflight.CheckSystemDeps(cfg, prof, executablePath()) {
				switch {
				case status.Available:
					fmt.Fprintln(out, renderStatusLine(status.Name, statusOK, status.Path, colorize))
				case status.Optional:
					fmt.Fprintln(out, renderStatusLine(status.Name, statusWarn, status.Detail+" ("+status.Impact+"); "+status.Hint(), colorize))
				default:
					fmt.Fprintln(out, renderStatusLine(status.Name, statusError, status.Detail+"; "+status.Hint(), colorize))
					failed = true
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, strings.Join(renderSectionHeader("Directories", colorize), "\n"))
			for _, r := range preflight.RunAll(cfg) {
				kind := statusOK
				if !r.Passed {
					kind = statusError
					failed = true
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if cfg.Paths.OutputDir != "" {
				if free, err := preflight.FreeBytes(cfg.Paths.OutputDir); err == nil {
					fmt.Fprintln(out, renderStatusLine("Free space", statusInfo, formatBytes(free), colorize))
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, strings.Join(renderSectionHeader("Runtime", colorize), "\n"))
			locked, err := job.Locked(cfg.LockPath())
			switch {
			case err != nil:
				fmt.Fprintln(out, renderStatusLine("Controller", statusWarn, err.Error(), colorize))
			case locked:
				fmt.Fprintln(out, renderStatusLine("Controller", statusWarn, "running (lock held)", colorize))
			default:
				fmt.Fprintln(out, renderStatusLine("Controller", statusOK, "idle", colorize))
			}
			if cfg.Watch.Drive != "" {
				probe := preflight.ProbeDisc(cmd.Context(), cfg.Watch.Drive)
				fmt.Fprintln(out, renderStatusLine("Drive "+probe.Device, statusInfo, probe.DiscDetail(), colorize))
			}
			fmt.Fprintln(out, renderStatusLine("History", statusInfo, yesNo(cfg.History.Enabled), colorize))

			if failed {
				return errors.New("system check failed")
			}
			return nil
		},
	}
}
