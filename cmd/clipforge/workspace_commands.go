package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/logging"
	"clipforge/internal/staging"
)

func newWorkspaceCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage stage workspace directories",
	}
	cmd.AddCommand(newWorkspaceListCommand(ctx))
	cmd.AddCommand(newWorkspaceCleanCommand(ctx))
	return cmd
}

func newWorkspaceListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List per-job workspace directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, root := range cfg.WorkspaceRoots() {
				dirs, err := staging.ListDirectories(root)
				if err != nil {
					return err
				}
				if len(dirs) == 0 {
					continue
				}
				rows := make([][]string, 0, len(dirs))
				for _, dir := range dirs {
					rows = append(rows, []string{
						dir.Name,
						dir.ModTime.Format(time.DateTime),
						strconv.FormatInt(dir.Size, 10),
					})
				}
				fmt.Fprintln(out, root)
				fmt.Fprintln(out, renderTable(
					[]string{"Workspace", "Modified", "Bytes"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
			}
			return nil
		},
	}
}

func newWorkspaceCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAgeFlag time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove workspaces older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result := staging.CleanWorkspaces(cmd.Context(), cfg.WorkspaceRoots(), maxAgeFlag, logging.NewNop())
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d workspaces\n", len(result.Removed))
			for _, failure := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to remove %s: %v\n", failure.Path, failure.Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAgeFlag, "max-age", 24*time.Hour, "Remove workspaces older than this")
	return cmd
}
