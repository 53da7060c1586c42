package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Len(t, cfg.Client.Relays, 5)
	assert.Equal(t, "wss://relay.damus.io", cfg.Client.Relays[0])
	assert.Equal(t, 250, cfg.Client.FeedPageSize)
	assert.Equal(t, 10*time.Second, cfg.Client.DialTimeout)
	assert.True(t, cfg.Client.VerifySignatures)
	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NOSTR_CLIENT_CLIENT_RELAYS", "wss://a.example,ws://b.example:7777")
	t.Setenv("NOSTR_CLIENT_CLIENT_FEED_PAGE_SIZE", "50")
	t.Setenv("NOSTR_CLIENT_LOGGING_LEVEL", "debug")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://a.example", "ws://b.example:7777"}, cfg.Client.Relays)
	assert.Equal(t, 50, cfg.Client.FeedPageSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  RELAYS:
    - wss://only.example
  DEDUP_CACHE_SIZE: 500
`), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://only.example"}, cfg.Client.Relays)
	assert.Equal(t, 500, cfg.Client.DedupCacheSize)
	assert.Equal(t, 256, cfg.Client.SendQueueSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{
			name:    "http relay",
			env:     map[string]string{"NOSTR_CLIENT_CLIENT_RELAYS": "https://not-a-relay.example"},
			message: "must be a ws:// or wss:// relay URL",
		},
		{
			name:    "short private key",
			env:     map[string]string{"NOSTR_CLIENT_GENERAL_PRIVATE_KEY": "abcd"},
			message: "64-character hexadecimal",
		},
		{
			name:    "storage without dsn",
			env:     map[string]string{"NOSTR_CLIENT_STORAGE_ENABLED": "true"},
			message: "STORAGE.DSN is required",
		},
		{
			name:    "bad log level",
			env:     map[string]string{"NOSTR_CLIENT_LOGGING_LEVEL": "loud"},
			message: "must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestIsRelayURL(t *testing.T) {
	assert.True(t, IsRelayURL("wss://relay.damus.io"))
	assert.True(t, IsRelayURL("ws://127.0.0.1:7447/path"))
	assert.False(t, IsRelayURL("relay.damus.io"))
	assert.False(t, IsRelayURL("https://relay.damus.io"))
	assert.False(t, IsRelayURL("wss://"))
}
