package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/config"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueShowCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueCancelCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(func(cfg *config.Config, jobs *api.Service) error {
				views, err := jobs.List(cmd.Context())
				if err != nil {
					return err
				}
				if statusFlag != "" {
					filtered := views[:0]
					for _, view := range views {
						if strings.EqualFold(view.Status, statusFlag) {
							filtered = append(filtered, view)
						}
					}
					views = filtered
				}
				if jsonFlag {
					return writeJSON(cmd, api.JobListResponse{Jobs: views})
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, view := range views {
					rows = append(rows, []string{
						strconv.FormatInt(view.ID, 10),
						view.UserID,
						view.SourceVideoID,
						view.Plan,
						view.Lane,
						view.Status,
						fmt.Sprintf("%.0f%%", view.Progress.Percent),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "User", "Video", "Plan", "Lane", "Status", "Progress"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by job status")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withJobs(func(cfg *config.Config, jobs *api.Service) error {
				view, err := jobs.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if view == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if jsonFlag {
					return writeJSON(cmd, api.JobResponse{Job: *view})
				}
				printJobDetail(cmd, *view)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit JSON output")
	return cmd
}

func printJobDetail(cmd *cobra.Command, view api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d (%s)\n", view.ID, view.Status)
	fmt.Fprintf(out, "  User:       %s\n", view.UserID)
	fmt.Fprintf(out, "  Video:      %s\n", view.SourceVideoID)
	fmt.Fprintf(out, "  Plan:       %s (%s lane)\n", view.Plan, view.Lane)
	fmt.Fprintf(out, "  Transition: %s\n", view.Transition)
	fmt.Fprintf(out, "  Shorts:     %s\n", yesNo(view.ShortsMode))
	if view.Progress.Stage != "" {
		fmt.Fprintf(out, "  Progress:   %s %.0f%% %s\n", view.Progress.Stage, view.Progress.Percent, view.Progress.Message)
	}
	if view.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:      %s\n", view.ErrorMessage)
	}
	if view.ArtifactURL != "" {
		fmt.Fprintf(out, "  Artifact:   %s\n", view.ArtifactURL)
	}
	if view.PublishURL != "" {
		fmt.Fprintf(out, "  Published:  %s\n", view.PublishURL)
	}
	if view.CompletedAt != "" {
		fmt.Fprintf(out, "  Completed:  %s\n", view.CompletedAt)
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-queue a failed or cancelled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withJobs(func(cfg *config.Config, jobs *api.Service) error {
				view, err := jobs.Enqueue(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d is %s\n", view.ID, view.Status)
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withJobs(func(cfg *config.Config, jobs *api.Service) error {
				cancelled, err := jobs.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !cancelled {
					return fmt.Errorf("job %d is not cancellable", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %d\n", id)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withJobs(func(cfg *config.Config, jobs *api.Service) error {
				removed, err := jobs.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("job %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d removed\n", id)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobs(func(cfg *config.Config, jobs *api.Service) error {
				removed, err := jobs.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed jobs\n", removed)
				return nil
			})
		},
	}
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}
