package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"discbatch/internal/config"
	"discbatch/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var probeBinary string

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show streams and frame size of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var o config.Overrides
			if cmd.Flags().Changed("probe") {
				o.FFprobe = &probeBinary
			}
			cfg, err := ctx.applyOverrides(o)
			if err != nil {
				return err
			}
			binary := cfg.FFprobeBinary()
			if binary == "" {
				return errors.New("ffprobe is disabled; set tools.ffprobe or pass --probe")
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			result, err := ffprobe.Inspect(cmd.Context(), binary, path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:     %s\n", path)
			fmt.Fprintf(out, "Format:   %s\n", result.Format.FormatName)
			if d := result.DurationSeconds(); !math.IsNaN(d) && d > 0 {
				fmt.Fprintf(out, "Duration: %s\n", formatDuration(time.Duration(d*float64(time.Second))))
			}
			if size := result.SizeBytes(); size > 0 {
				fmt.Fprintf(out, "Size:     %s\n", formatBytes(uint64(size)))
			}
			if dims, err := (ffprobe.Prober{Binary: binary}).Resolution(cmd.Context(), path); err == nil {
				fmt.Fprintf(out, "Frame:    %s\n", dims)
			}

			rows := make([][]string, 0, len(result.Streams))
			for _, s := range result.Streams {
				detail := ""
				switch s.CodecType {
				case "video":
					detail = fmt.Sprintf("%dx%d %s", s.Width, s.Height, s.FieldOrder)
				case "audio":
					detail = fmt.Sprintf("%d ch %s Hz", s.Channels, s.SampleRate)
				}
				rows = append(rows, []string{strconv.Itoa(s.Index), s.CodecType, s.CodecName, detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Type", "Codec", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&probeBinary, "probe", "p", "", "ffprobe executable")
	return cmd
}
