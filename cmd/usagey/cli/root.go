package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/usagey/usagey-go/internal/config"
	"github.com/usagey/usagey-go/internal/logger"
)

// session carries the config and logger shared by subcommands.
type session struct {
	cfg *config.Config
	log logger.Logger
}

func (s *session) init() error {
	if s.cfg != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sugar, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	s.cfg = cfg
	s.log = logger.New(sugar)
	s.log.DebugObj("config loaded", "config", cfg.Redacted())
	return nil
}

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(version, commit, date).ExecuteContext(ctx)
}

func newRootCmd(version, commit, date string) *cobra.Command {
	s := &session{}

	cmd := &cobra.Command{
		Use:   "usagey",
		Short: "Track usage events and manage API keys on Usagey",
		Long: `usagey talks to the Usagey usage-based billing API.

Configuration comes from the environment (or a .env file): USAGEY_API_KEY is
required for every API command, USAGEY_API_URL overrides the service address.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return s.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Close()
		},
	}

	cmd.AddCommand(newTrackCmd(s))
	cmd.AddCommand(newTrackBatchCmd(s))
	cmd.AddCommand(newKeysCmd(s))
	cmd.AddCommand(newStatsCmd(s))
	cmd.AddCommand(newEventsCmd(s))
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}
