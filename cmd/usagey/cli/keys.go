package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/usagey/usagey-go/internal/app"
	"github.com/usagey/usagey-go/pkg/usagey"
)

func newKeysCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keys",
		Aliases: []string{"key"},
		Short:   "Manage API keys",
	}

	cmd.AddCommand(newKeysCreateCmd(s))
	cmd.AddCommand(newKeysRegenerateCmd(s))
	cmd.AddCommand(newKeysDeleteCmd(s))

	return cmd
}

func newKeysCreateCmd(s *session) *cobra.Command {
	var (
		name      string
		orgID     string
		expiresAt string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.NewClient(s.cfg, s.log)
			if err != nil {
				return err
			}

			var opts []usagey.APIKeyOption
			if expiresAt != "" {
				t, err := time.Parse(time.RFC3339, expiresAt)
				if err != nil {
					return fmt.Errorf("invalid --expires-at (expected RFC3339): %w", err)
				}
				opts = append(opts, usagey.WithExpiresAt(t))
			}

			key, err := client.CreateAPIKey(cmd.Context(), name, orgID, opts...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), key)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Key name (required)")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "Expiry time in RFC3339")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func newKeysRegenerateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <id>",
		Short: "Replace the secret of an existing API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.NewClient(s.cfg, s.log)
			if err != nil {
				return err
			}
			key, err := client.RegenerateAPIKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), key)
		},
	}
}

func newKeysDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.NewClient(s.cfg, s.log)
			if err != nil {
				return err
			}
			resp, err := client.DeleteAPIKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
}
