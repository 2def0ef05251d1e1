package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"discbatch/internal/config"
	"discbatch/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var list bool

	cmd := &cobra.Command{
		Use:   "clean [dirs...]",
		Short: "Remove leftover work directories and concat lists",
		Long: `Remove *.VOBS work directories and *.mylist.txt concat lists left behind
by interrupted runs. Directories default to the configured output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			dirs := args
			if len(dirs) == 0 {
				if cfg.Paths.OutputDir == "" {
					return fmt.Errorf("no directory given and paths.output_dir is not set")
				}
				dirs = []string{cfg.Paths.OutputDir}
			}

			for _, dir := range dirs {
				expanded, err := config.ExpandPath(dir)
				if err != nil {
					return err
				}
				if list {
					if err := printWorkDirs(cmd, expanded); err != nil {
						return err
					}
					continue
				}
				result := staging.CleanStale(cmd.Context(), expanded, olderThan, logger)
				printCleanResult(cmd, expanded, result)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Only remove entries older than this")
	cmd.Flags().BoolVar(&list, "list", false, "List scratch entries without removing them")
	return cmd
}

func printWorkDirs(cmd *cobra.Command, dir string) error {
	out := cmd.OutOrStdout()
	entries, err := staging.ListWorkDirs(dir)
	if err != nil {
		return fmt.Errorf("list work directories: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "%s: no scratch entries\n", dir)
		return nil
	}
	var total int64
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		total += e.Size
		rows = append(rows, []string{e.Name, formatDuration(time.Since(e.ModTime).Truncate(time.Minute)), formatBytes(uint64(max(e.Size, 0)))})
	}
	fmt.Fprintf(out, "%s:\n", dir)
	fmt.Fprintln(out, renderTable(
		[]string{"Entry", "Age", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
	fmt.Fprintf(out, "Total: %d entries, %s\n", len(entries), formatBytes(uint64(max(total, 0))))
	return nil
}

func printCleanResult(cmd *cobra.Command, dir string, result staging.CleanStaleResult) {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintf(out, "%s: nothing to clean\n", dir)
		return
	}
	fmt.Fprintf(out, "%s: removed %d entries", dir, len(result.Removed))
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, ", %d errors", len(result.Errors))
	}
	fmt.Fprintln(out)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
	}
}
