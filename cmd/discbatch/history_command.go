package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"discbatch/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs or the results of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled (history.enabled = false)")
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if id := strings.TrimSpace(runID); id != "" {
				results, err := store.Results(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintf(out, "No results recorded for run %s\n", id)
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, e := range results {
					rows = append(rows, []string{
						e.Image,
						e.Profile,
						e.Outcome,
						strconv.Itoa(len(e.Outputs)),
						formatBytes(uint64(max(e.Bytes, 0))),
						formatDuration(e.Finished.Sub(e.Started)),
						e.Reason,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Image", "Profile", "Outcome", "Outputs", "Size", "Time", "Reason"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			}

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				finished := "running"
				if !r.Finished.IsZero() {
					finished = formatDuration(r.Finished.Sub(r.Started))
				}
				if r.Cancelled {
					finished += " (cancelled)"
				}
				rows = append(rows, []string{
					r.ID,
					r.Started.Local().Format(time.DateTime),
					r.Strategy,
					r.Profile,
					strconv.Itoa(r.Images),
					strconv.Itoa(r.Succeeded),
					strconv.Itoa(r.Failed),
					finished,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Strategy", "Profile", "Images", "OK", "Unprocessed", "Time"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the per-image results of one run")
	return cmd
}
