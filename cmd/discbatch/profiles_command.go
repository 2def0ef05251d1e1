package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"discbatch/internal/profile"
)

func newProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "profiles",
		Short:       "List output profiles",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			all := profile.All()
			rows := make([][]string, 0, len(all))
			for _, p := range all {
				size := p.FixedResolution
				if size == "" {
					size = "source"
				} else {
					size += " (probed when possible)"
				}
				rows = append(rows, []string{
					p.Name,
					strings.Join(p.Aliases, ", "),
					string(p.Engine),
					p.Extension,
					size,
					p.Description,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Aliases", "Engine", "Ext", "Frame", "Description"},
				rows,
				nil,
			))
			return nil
		},
	}
}
