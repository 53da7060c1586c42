package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/client"
	"github.com/Shugur-Network/nostr-client/internal/config"
	"github.com/Shugur-Network/nostr-client/internal/domain"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
	"github.com/Shugur-Network/nostr-client/internal/storage"
	"github.com/Shugur-Network/nostr-client/internal/subscriber"
)

const shutdownTimeout = 10 * time.Second

// Node ties together client, subscriber, storage and the metrics server.
type Node struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config

	db            *storage.DB
	storeProc     *storage.Processor
	Client        *client.Client
	Subscriber    *subscriber.Subscriber
	follower      *feedFollower
	metricsServer *metrics.Server
}

// New creates and configures a Node using the NodeBuilder pattern. extra,
// when non-nil, sees every unique event after storage.
func New(ctx context.Context, cfg *config.Config, extra domain.EventProcessor, version string) (*Node, error) {
	builder := NewNodeBuilder(ctx, cfg).WithProcessor(extra)

	if err := builder.BuildKeys(); err != nil {
		return nil, fmt.Errorf("failed building keys: %w", err)
	}
	if err := builder.BuildDB(); err != nil {
		return nil, fmt.Errorf("failed building db: %w", err)
	}
	builder.BuildProcessor()
	if err := builder.BuildClient(); err != nil {
		return nil, fmt.Errorf("failed building client: %w", err)
	}
	builder.BuildSubscriber()
	builder.BuildMetrics(version)

	node, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build node: %w", err)
	}
	return node, nil
}

// Start serves metrics, asks for the local profile and contact list and,
// when storage knows the contacts, resumes the feed from the newest stored post.
func (n *Node) Start(ctx context.Context) error {
	if n.metricsServer != nil {
		n.metricsServer.Start()
	}

	pubkey := n.Client.Pubkey()
	// the feed follows our contact list from here on
	n.follower.bind(pubkey, n.Subscriber)
	n.Subscriber.SubscribeToProfileMetadataAndContactList(pubkey)

	if n.db != nil {
		contacts, err := n.db.Contacts(ctx, pubkey)
		if err != nil {
			return fmt.Errorf("load stored contacts: %w", err)
		}
		since, err := n.db.LatestFeedTimestamp(ctx, pubkey)
		if err != nil {
			return fmt.Errorf("load feed position: %w", err)
		}
		pubkeys := make([]string, 0, len(contacts))
		for _, c := range contacts {
			pubkeys = append(pubkeys, c.Pubkey)
		}
		ids := n.follower.follow(pubkeys, since)
		logger.Info("Feed resumed from storage",
			zap.Int("contacts", len(pubkeys)),
			zap.Bool("catch_up", since != nil),
			zap.Strings("sub_ids", ids))
	}

	logger.Info("Node started",
		zap.String("pubkey", pubkey),
		zap.Int("relays", len(n.Client.Relays())))
	return nil
}

// Shutdown closes feeds, relays, storage and the metrics server in that order.
func (n *Node) Shutdown() {
	logger.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	n.Subscriber.UnsubscribeFeeds()
	n.Client.Close()
	logger.Debug("Client closed")

	if n.storeProc != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			n.storeProc.Shutdown()
		}()
		select {
		case <-done:
			logger.Debug("Storage processor stopped")
		case <-shutdownCtx.Done():
			logger.Warn("Storage processor shutdown timed out", zap.Duration("timeout", shutdownTimeout))
		}
	}

	if n.metricsServer != nil {
		if err := n.metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}

	n.cancel()
	if n.db != nil {
		n.db.Close()
	}
	logger.Info("Node shutdown completed")
}
