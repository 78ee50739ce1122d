package main

import (
	"fmt"
	"os"

	"github.com/d1nch8g/dialcoach/config"
	"github.com/d1nch8g/dialcoach/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "dialcoach",
		Short:        "Practice sales calls against an AI prospect",
		SilenceUsage: true,
	}

	root.AddCommand(
		newContactsCmd(),
		newCallCmd(cfg, logger),
		newServeCmd(cfg, logger),
	)
	return root
}
