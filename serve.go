package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/d1nch8g/dialcoach/config"
	"github.com/d1nch8g/dialcoach/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the credential backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.DeepgramAPIKey == "" {
				logger.Warn().Msg("DEEPGRAM_API_KEY is not set, /api/config will fail")
			}

			srv := server.New(server.Options{
				Port:     cfg.Port,
				GRPCPort: cfg.GRPCPort,
				APIKey:   cfg.DeepgramAPIKey,
			}, logger)
			return srv.Run(ctx)
		},
	}
}
