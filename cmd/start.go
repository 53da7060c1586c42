package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/application"
	"github.com/Shugur-Network/nostr-client/internal/domain"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
	"github.com/Shugur-Network/nostr-client/internal/storage"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Connect to the relays and follow the feed",
		Long: "Connect to every configured relay, fetch the local profile and contact list, " +
			"and stream posts by the contacts until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			printWelcomeBanner()
			ctx := cmd.Context()

			metrics.RegisterMetrics()

			// without storage the feed goes to stdout
			var extra domain.EventProcessor
			if !cfg.Storage.Enabled {
				extra = storage.NewPrinter(os.Stdout)
			}

			logger.Info("Starting client...", zap.Strings("relays", cfg.Client.Relays))
			node, err := application.New(ctx, cfg, extra, version)
			if err != nil {
				return fmt.Errorf("failed to initialize the client: %w", err)
			}
			if err := node.Start(ctx); err != nil {
				node.Shutdown()
				return fmt.Errorf("failed to start the client: %w", err)
			}
			logger.Info("nostr-client started successfully!", zap.String("pubkey", node.Client.Pubkey()))

			<-ctx.Done()
			logger.Info("Shutdown signal received, initiating graceful shutdown...")
			node.Shutdown()
			return nil
		},
	}
}
