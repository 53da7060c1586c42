package application

import (
	"github.com/Shugur-Network/nostr-client/internal/client"
	"github.com/Shugur-Network/nostr-client/internal/config"
	"github.com/Shugur-Network/nostr-client/internal/relay"
	"github.com/Shugur-Network/nostr-client/internal/storage"
)

// ClientOptions maps the CLIENT config section onto client options.
func ClientOptions(cfg *config.Config) client.Options {
	c := cfg.Client
	return client.Options{
		Relays: c.Relays,
		Relay: relay.Options{
			DialTimeout:   c.DialTimeout,
			WriteTimeout:  c.WriteTimeout,
			PingInterval:  c.PingInterval,
			SendQueueSize: c.SendQueueSize,
			ReadLimit:     c.ReadLimit,
			PublishRate:   c.PublishRate,
			PublishBurst:  c.PublishBurst,
		},
		DedupCacheSize:   c.DedupCacheSize,
		AckTrackerSize:   c.AckTrackerSize,
		VerifySignatures: c.VerifySignatures,
	}
}

// DB returns the node's database, or nil when storage is disabled.
func (n *Node) DB() *storage.DB {
	return n.db
}

// Config returns the node's configuration.
func (n *Node) Config() *config.Config {
	return n.config
}
