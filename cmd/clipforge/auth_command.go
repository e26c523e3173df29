package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/publish"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage publish credentials",
	}
	cmd.AddCommand(newAuthSetCommand(ctx))
	cmd.AddCommand(newAuthShowCommand(ctx))
	return cmd
}

func newAuthSetCommand(ctx *commandContext) *cobra.Command {
	var (
		accessFlag  string
		refreshFlag string
		expiresFlag time.Duration
	)

	cmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Store OAuth tokens for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			credential := publish.Credential{
				UserID:       args[0],
				AccessToken:  accessFlag,
				RefreshToken: refreshFlag,
			}
			if expiresFlag > 0 {
				credential.ExpiresAt = time.Now().Add(expiresFlag)
			}
			store := publish.NewFileCredentialStore(cfg.CredentialsDir())
			if err := store.Save(credential); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&accessFlag, "access-token", "", "OAuth access token")
	cmd.Flags().StringVar(&refreshFlag, "refresh-token", "", "OAuth refresh token")
	cmd.Flags().DurationVar(&expiresFlag, "expires-in", 0, "Access token lifetime (e.g. 1h)")
	_ = cmd.MarkFlagRequired("access-token")
	_ = cmd.MarkFlagRequired("refresh-token")

	return cmd
}

func newAuthShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show stored credential state for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := publish.NewFileCredentialStore(cfg.CredentialsDir())
			credential, err := store.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:          %s\n", credential.UserID)
			fmt.Fprintf(out, "Refresh token: %s\n", yesNo(credential.RefreshToken != ""))
			if credential.ExpiresAt.IsZero() {
				fmt.Fprintln(out, "Expires:       no expiry recorded")
			} else {
				fmt.Fprintf(out, "Expires:       %s\n", credential.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
