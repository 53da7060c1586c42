package constants

import "time"

// Default relay set used when no relays are configured
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nostr.oxtr.dev",
	"wss://nostr-relay.wlvs.space",
	"wss://nostr.fmt.wiz.biz",
	"wss://nostr.einundzwanzig.space",
}

// Subscription limits
const (
	DefaultFeedPageSize  = 250 // limit applied to a feed request without a since bound
	ProfileMetadataLimit = 1   // the newest kind 0 is the only one that matters
)

// Cache sizes
const (
	DefaultDedupCacheSize  = 100_000
	DefaultAckTrackerSize  = 1_000
	DefaultBloomFalsePos   = 0.01
	BloomSaturationFactor  = 2 // rebuild the bloom prefilter after this many cache sizes of inserts
	DefaultInboxBufferSize = 1_024
)

// Relay connection defaults
const (
	DefaultDialTimeout   = 10 * time.Second
	DefaultWriteTimeout  = 10 * time.Second
	DefaultPingInterval  = 30 * time.Second
	DefaultSendQueueSize = 256
	DefaultReadLimit     = 1 << 20
	PongWaitFactor       = 2 // pong deadline = PingInterval * PongWaitFactor
	CloseGracePeriod     = time.Second
)

// Identity defaults
const (
	IdentityDirName  = ".nostr-client"
	IdentityFileName = "identity.key"
)

// Storage operation constants
const (
	MaxDBRetries         = 3
	DBRetryDelay         = time.Second
	DBConnAcquireTimeout = 10 * time.Second
	HealthCheckTimeout   = 5 * time.Second
	MaxProcessRetries    = 3
	ProcessRetryBackoff  = 100 * time.Millisecond
	DBQueryTimeout       = 5 * time.Second

	DBPoolMinConns      = 1
	DBConnMaxLifetime   = 60 * time.Minute
	DBConnMaxIdleTime   = 15 * time.Minute
	DBHealthCheckPeriod = 30 * time.Second
	DefaultStoreWorkers = 4
	DefaultStoreQueue   = 10_000
)

// Fetch command defaults
const (
	DefaultFetchTimeout = 15 * time.Second
)
