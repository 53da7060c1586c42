package config

import "time"

// ClientConfig holds relay pool settings.
type ClientConfig struct {
	Relays           []string      `mapstructure:"RELAYS"            json:"relays"            validate:"omitempty,dive,relayurl"`
	DialTimeout      time.Duration `mapstructure:"DIAL_TIMEOUT"      json:"dial_timeout"      validate:"required,timeout_duration"`
	WriteTimeout     time.Duration `mapstructure:"WRITE_TIMEOUT"     json:"write_timeout"     validate:"required,timeout_duration"`
	PingInterval     time.Duration `mapstructure:"PING_INTERVAL"     json:"ping_interval"     validate:"required,timeout_duration"`
	SendQueueSize    int           `mapstructure:"SEND_QUEUE_SIZE"   json:"send_queue_size"   validate:"required,min=1,max=65536"`
	ReadLimit        int64         `mapstructure:"READ_LIMIT"        json:"read_limit"        validate:"required,min=1024"`
	DedupCacheSize   int           `mapstructure:"DEDUP_CACHE_SIZE"  json:"dedup_cache_size"  validate:"required,min=100,max=10000000"`
	VerifySignatures bool          `mapstructure:"VERIFY_SIGNATURES" json:"verify_signatures"`
	PublishRate      float64       `mapstructure:"PUBLISH_RATE"      json:"publish_rate"      validate:"min=0"`
	PublishBurst     int           `mapstructure:"PUBLISH_BURST"     json:"publish_burst"     validate:"min=0,max=1000"`
	FeedPageSize     int           `mapstructure:"FEED_PAGE_SIZE"    json:"feed_page_size"    validate:"required,min=1,max=5000"`
	AckTrackerSize   int           `mapstructure:"ACK_TRACKER_SIZE"  json:"ack_tracker_size"  validate:"required,min=1,max=100000"`
}
