package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/usagey/usagey-go/internal/app"
	"github.com/usagey/usagey-go/pkg/usagey"
)

func newTrackCmd(s *session) *cobra.Command {
	var (
		quantity int
		metadata []string
	)

	cmd := &cobra.Command{
		Use:   "track <event_type>",
		Short: "Record a single usage event",
		Example: `  usagey track api_call
  usagey track storage_gb --quantity 5 --metadata region=eu --metadata tier=2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.NewClient(s.cfg, s.log)
			if err != nil {
				return err
			}
			meta, err := parseMetadata(metadata)
			if err != nil {
				return err
			}

			opts := []usagey.EventOption{usagey.WithMetadata(meta)}
			if cmd.Flags().Changed("quantity") {
				opts = append(opts, usagey.WithQuantity(quantity))
			}
			resp, err := client.TrackEvent(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().IntVar(&quantity, "quantity", 1, "Event quantity")
	cmd.Flags().StringArrayVar(&metadata, "metadata", nil, "Metadata entry as key=value (repeatable)")

	return cmd
}

func newTrackBatchCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "track-batch <file|url>",
		Short: "Track every event in a YAML or JSON manifest",
		Long: `Track every event listed in a manifest file or URL:

  events:
    - key: invoice-42        # optional, replays with the same key are skipped
      event_type: api_call
      quantity: 3
      metadata: {endpoint: /search}

Rate-limited events are retried with exponential backoff. Successful events are
recorded in the local ledger and forwarded to the publishers in PUBLISHERS_FILE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := app.NewRunner(cmd.Context(), s.cfg, s.log)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := runner.Close(); cerr != nil {
					s.log.WarnObj("runner close failed", "error", cerr.Error())
				}
			}()

			sum, runErr := runner.TrackBatch(cmd.Context(), args[0])
			if err := writeJSON(cmd.OutOrStdout(), sum); err != nil {
				return err
			}
			if runErr != nil && sum.Failed > 0 {
				return fmt.Errorf("%d of %d events failed: %w", sum.Failed, sum.Total, runErr)
			}
			return runErr
		},
	}
}
