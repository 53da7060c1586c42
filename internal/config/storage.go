package config

// StorageConfig holds settings for the PostgreSQL event sink.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"ENABLED"    json:"enabled"`
	DSN       string `mapstructure:"DSN"        json:"-"          validate:"omitempty"`
	Workers   int    `mapstructure:"WORKERS"    json:"workers"    validate:"required,min=1,max=64"`
	QueueSize int    `mapstructure:"QUEUE_SIZE" json:"queue_size" validate:"required,min=1,max=1000000"`
}
