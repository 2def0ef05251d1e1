package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"discbatch/internal/catalog"
	"discbatch/internal/config"
	"discbatch/internal/job"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	var grouping string

	cmd := &cobra.Command{
		Use:   "catalog <image>",
		Short: "List the title-set groups and segments inside an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var o config.Overrides
			if cmd.Flags().Changed("grouping") {
				o.Grouping = &grouping
			}
			cfg, err := ctx.applyOverrides(o)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			mode, err := catalog.ParseGrouping(cfg.Merge.Grouping)
			if err != nil {
				return err
			}

			images, err := job.Enumerate(args, false, cfg.Batch.Extensions)
			if err != nil {
				return err
			}
			if len(images) != 1 {
				return fmt.Errorf("%s is not a single disc image", args[0])
			}
			img := images[0]

			mounter := newMounter(cfg, logger)
			handle, err := mounter.Mount(cmd.Context(), img.Path)
			if err != nil {
				return err
			}
			defer func() {
				if err := mounter.Unmount(context.WithoutCancel(cmd.Context()), handle); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}()

			cat, err := catalog.Build(cmd.Context(), handle.Root,
				catalog.WithGrouping(mode),
				catalog.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), img.Name(), cat)
			return nil
		},
	}

	cmd.Flags().StringVar(&grouping, "grouping", "", "Segment grouping: sorted or walk")
	return cmd
}
