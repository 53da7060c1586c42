package application

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Shugur-Network/nostr-client/internal/client"
	"github.com/Shugur-Network/nostr-client/internal/config"
	"github.com/Shugur-Network/nostr-client/internal/domain"
	"github.com/Shugur-Network/nostr-client/internal/health"
	"github.com/Shugur-Network/nostr-client/internal/keys"
	"github.com/Shugur-Network/nostr-client/internal/logger"
	"github.com/Shugur-Network/nostr-client/internal/metrics"
	"github.com/Shugur-Network/nostr-client/internal/storage"
	"github.com/Shugur-Network/nostr-client/internal/subscriber"
)

// NodeBuilder is used to incrementally construct a Node instance.
type NodeBuilder struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config

	keys       domain.KeyProvider
	database   *storage.DB
	storeProc  *storage.Processor
	processors domain.MultiProcessor
	onEOSE     func(relayURL, subID string)
	follower   *feedFollower

	client        *client.Client
	subscriber    *subscriber.Subscriber
	metricsServer *metrics.Server
}

// NewNodeBuilder creates a new NodeBuilder with its own cancelable context.
func NewNodeBuilder(ctx context.Context, cfg *config.Config) *NodeBuilder {
	c, cancel := context.WithCancel(ctx)
	return &NodeBuilder{
		ctx:    c,
		cancel: cancel,
		config: cfg,
	}
}

// WithProcessor adds p to the processors every unique event is handed to.
func (b *NodeBuilder) WithProcessor(p domain.EventProcessor) *NodeBuilder {
	if p != nil {
		b.processors = append(b.processors, p)
	}
	return b
}

// WithEOSEHook observes every EOSE the client receives.
func (b *NodeBuilder) WithEOSEHook(fn func(relayURL, subID string)) *NodeBuilder {
	b.onEOSE = fn
	return b
}

// BuildKeys picks the identity: a configured private key wins over the identity file.
func (b *NodeBuilder) BuildKeys() error {
	if b.config.General.PrivateKey != "" {
		b.keys = keys.StaticProvider{PrivateKeyHex: b.config.General.PrivateKey}
		return nil
	}
	provider, err := keys.NewFileProvider(b.config.General.IdentityFile)
	if err != nil {
		return fmt.Errorf("resolve identity file: %w", err)
	}
	logger.Debug("Using identity file", zap.String("path", provider.Path))
	b.keys = provider
	return nil
}

// BuildDB connects to PostgreSQL when storage is enabled.
func (b *NodeBuilder) BuildDB() error {
	if !b.config.Storage.Enabled {
		logger.Debug("Storage disabled")
		return nil
	}
	db, err := storage.InitDB(b.ctx, b.config.Storage.DSN, b.config.Storage.Workers)
	if err != nil {
		b.cancel()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	b.database = db
	return nil
}

// BuildProcessor puts the storage processor in front of any added processors.
func (b *NodeBuilder) BuildProcessor() {
	if b.database != nil {
		b.storeProc = storage.NewProcessor(b.ctx, b.database, b.config.Storage.Workers, b.config.Storage.QueueSize)
		b.processors = append(domain.MultiProcessor{b.storeProc}, b.processors...)
	}
}

// BuildClient dials the configured relays.
func (b *NodeBuilder) BuildClient() error {
	if b.keys == nil {
		return fmt.Errorf("keys must be built before the client")
	}

	b.follower = &feedFollower{}
	processors := append(b.processors, b.follower)

	opts := ClientOptions(b.config)
	opts.OnEOSE = b.onEOSE
	c, err := client.New(b.ctx, opts, processors, b.keys)
	if err != nil {
		b.cancel()
		return fmt.Errorf("failed to create client: %w", err)
	}
	b.client = c
	return nil
}

// BuildSubscriber wraps the client for feed and profile subscriptions.
func (b *NodeBuilder) BuildSubscriber() {
	b.subscriber = subscriber.New(b.client, b.config.Client.FeedPageSize)
}

// BuildMetrics prepares the metrics server with the health endpoint when enabled.
func (b *NodeBuilder) BuildMetrics(version string) {
	if !b.config.Metrics.Enabled {
		return
	}
	var db health.Database
	if b.database != nil {
		db = b.database
	}
	checker := health.NewHealthChecker(b.client, db, logger.New("application"), version)
	if b.storeProc != nil {
		checker.WithQueue(b.storeProc)
	}
	b.metricsServer = metrics.NewServer(b.config.Metrics.Port, map[string]http.Handler{
		"/health": http.HandlerFunc(checker.HandleHealth),
	})
}

// Build finalizes the node construction.
func (b *NodeBuilder) Build() (*Node, error) {
	if b.client == nil {
		return nil, fmt.Errorf("client must be built before calling Build()")
	}
	if b.subscriber == nil {
		return nil, fmt.Errorf("subscriber must be built before calling Build()")
	}

	logger.Debug("Node initialized successfully via builder")
	return &Node{
		ctx:           b.ctx,
		cancel:        b.cancel,
		config:        b.config,
		db:            b.database,
		storeProc:     b.storeProc,
		Client:        b.client,
		Subscriber:    b.subscriber,
		follower:      b.follower,
		metricsServer: b.metricsServer,
	}, nil
}
