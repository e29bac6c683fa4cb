package cli

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/usagey/usagey-go/internal/app"
	"github.com/usagey/usagey-go/pkg/usagey"
)

func newStatsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show usage for the current billing period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.NewClient(s.cfg, s.log)
			if err != nil {
				return err
			}
			stats, err := client.GetUsageStats(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newEventsCmd(s *session) *cobra.Command {
	var (
		eventType string
		start     string
		end       string
		limit     int
	)

	cmd := &cobra.Command{
		Use:     "events",
		Short:   "List recorded usage events",
		Example: `  usagey events --type api_call --start 2024-01-01T00:00:00Z --limit 20`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.NewClient(s.cfg, s.log)
			if err != nil {
				return err
			}
			resp, err := client.GetUsageEvents(cmd.Context(), usagey.UsageEventsFilter{
				EventType: eventType,
				StartDate: dateArg(start),
				EndDate:   dateArg(end),
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Only events of this type")
	cmd.Flags().StringVar(&start, "start", "", "Range start (RFC3339 or any date the API accepts)")
	cmd.Flags().StringVar(&end, "end", "", "Range end (RFC3339 or any date the API accepts)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of events")

	return cmd
}

// dateArg normalizes RFC3339 input to the API timestamp layout and passes
// anything else through untouched.
func dateArg(v string) usagey.DateArg {
	if v == "" {
		return usagey.DateArg{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return usagey.Date(t)
	}
	return usagey.DateString(v)
}
