package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/stage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and tool readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(func(cfg *config.Config, jobs *api.Service) error {
				counts, err := jobs.Stats(cmd.Context())
				if err != nil {
					return err
				}
				tools := checkTools(cfg)

				if jsonFlag {
					return writeJSON(cmd, map[string]any{
						"counts": counts,
						"tools":  tools,
					})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Tools", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, health := range tools {
					kind := statusOK
					message := ""
					if !health.Ready {
						kind = statusError
						message = health.Detail
					}
					fmt.Fprintln(out, renderStatusLine(health.Name, kind, message, colorize))
				}

				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(out, line)
				}
				statuses := make([]string, 0, len(counts))
				for status := range counts {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)
				for _, status := range statuses {
					fmt.Fprintf(out, "%s%-*s %d\n", statusIndent, statusLabelWidth, status+":", counts[status])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func checkTools(cfg *config.Config) []stage.Health {
	return []stage.Health{
		stage.CheckBinary("yt-dlp", cfg.FFmpeg.YtDlpBinary),
		stage.CheckBinary("ffmpeg", cfg.FFmpeg.FFmpegBinary),
		stage.CheckBinary("ffprobe", cfg.FFmpeg.FFprobeBinary),
	}
}
