package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/segments"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		userFlag       string
		durationFlag   float64
		segmentFlags   []string
		transitionFlag string
		planFlag       string
		shortsFlag     bool
		titleFlag      string
		descFlag       string
		tagFlags       []string
		privacyFlag    string
		jsonFlag       bool
	)

	cmd := &cobra.Command{
		Use:   "submit <video-id>",
		Short: "Submit a highlight job for a source video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ranges, err := parseSegmentFlags(segmentFlags)
			if err != nil {
				return err
			}
			return ctx.withJobs(func(cfg *config.Config, jobs *api.Service) error {
				view, err := jobs.Submit(cmd.Context(), api.SubmitRequest{
					UserID:         userFlag,
					SourceVideoID:  args[0],
					SourceDuration: durationFlag,
					Ranges:         ranges,
					Transition:     transitionFlag,
					Plan:           planFlag,
					ShortsMode:     shortsFlag,
					Title:          titleFlag,
					Description:    descFlag,
					Tags:           tagFlags,
					PrivacyStatus:  privacyFlag,
				})
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd, api.JobResponse{Job: view})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d admitted (%s lane, %s transition)\n",
					view.ID, view.Lane, view.Transition)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userFlag, "user", "u", "", "Requesting user id")
	cmd.Flags().Float64VarP(&durationFlag, "duration", "d", 0, "Source video duration in seconds")
	cmd.Flags().StringArrayVarP(&segmentFlags, "segment", "s", nil, "Segment as start-end seconds (repeatable, e.g. 12.5-30)")
	cmd.Flags().StringVarP(&transitionFlag, "transition", "t", "auto", "Transition style between segments")
	cmd.Flags().StringVarP(&planFlag, "plan", "p", "free", "Subscription plan (free or paid)")
	cmd.Flags().BoolVar(&shortsFlag, "shorts", false, "Publish as a YouTube Short")
	cmd.Flags().StringVar(&titleFlag, "title", "", "Published video title")
	cmd.Flags().StringVar(&descFlag, "description", "", "Published video description")
	cmd.Flags().StringArrayVar(&tagFlags, "tag", nil, "Published video tag (repeatable)")
	cmd.Flags().StringVar(&privacyFlag, "privacy", "", "Privacy status (private, unlisted, public)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("duration")
	_ = cmd.MarkFlagRequired("segment")

	return cmd
}

func parseSegmentFlags(values []string) ([]segments.Range, error) {
	ranges := make([]segments.Range, 0, len(values))
	for _, value := range values {
		start, end, ok := strings.Cut(strings.TrimSpace(value), "-")
		if !ok {
			return nil, fmt.Errorf("invalid segment %q: expected start-end", value)
		}
		startSec, err := strconv.ParseFloat(strings.TrimSpace(start), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid segment start %q", start)
		}
		endSec, err := strconv.ParseFloat(strings.TrimSpace(end), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid segment end %q", end)
		}
		ranges = append(ranges, segments.Range{Start: startSec, End: endSec})
	}
	return ranges, nil
}
