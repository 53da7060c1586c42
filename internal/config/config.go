package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Shugur-Network/nostr-client/internal/logger"
	validator "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

//go:embed defaults.yaml
var defaultYAML []byte

// EnvPrefix is prepended to every environment override, e.g. NOSTR_CLIENT_CLIENT_RELAYS.
const EnvPrefix = "NOSTR_CLIENT"

// Version is set at runtime from build information
var Version = "dev"

var validate = validator.New()

var hexKeyPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// Config holds every sub‑config.
type Config struct {
	General GeneralConfig `mapstructure:"general" validate:"required"`
	Logging LoggingConfig `mapstructure:"logging" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics" validate:"required"`
	Client  ClientConfig  `mapstructure:"client"  validate:"required"`
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
}

func init() {
	registerCustomValidators()
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		performCrossFieldValidation(sl, sl.Current().Interface().(Config))
	}, Config{})
}

// registerCustomValidators registers custom validation functions
func registerCustomValidators() {
	// ws:// or wss:// URL with a host
	if err := validate.RegisterValidation("relayurl", func(fl validator.FieldLevel) bool {
		return IsRelayURL(fl.Field().String())
	}); err != nil {
		logger.Error("Failed to register relayurl validator", zap.Error(err))
	}

	// optional 64-character hex key
	if err := validate.RegisterValidation("hexkey", func(fl validator.FieldLevel) bool {
		key := fl.Field().String()
		return key == "" || hexKeyPattern.MatchString(key)
	}); err != nil {
		logger.Error("Failed to register hexkey validator", zap.Error(err))
	}

	if err := validate.RegisterValidation("timeout_duration", func(fl validator.FieldLevel) bool {
		duration, ok := fl.Field().Interface().(time.Duration)
		return ok && duration >= time.Second && duration <= time.Hour
	}); err != nil {
		logger.Error("Failed to register timeout_duration validator", zap.Error(err))
	}

	if err := validate.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "debug", "info", "warn", "error", "fatal":
			return true
		}
		return false
	}); err != nil {
		logger.Error("Failed to register log_level validator", zap.Error(err))
	}

	if err := validate.RegisterValidation("log_format", func(fl validator.FieldLevel) bool {
		format := fl.Field().String()
		return format == "console" || format == "json"
	}); err != nil {
		logger.Error("Failed to register log_format validator", zap.Error(err))
	}
}

// IsRelayURL reports whether raw is an absolute ws:// or wss:// URL.
func IsRelayURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "ws" || u.Scheme == "wss") && u.Host != ""
}

// performCrossFieldValidation performs validation across multiple fields
func performCrossFieldValidation(sl validator.StructLevel, cfg Config) {
	if cfg.Storage.Enabled && cfg.Storage.DSN == "" {
		sl.ReportError(cfg.Storage.DSN, "DSN", "DSN", "dsn_required", "")
	}
	if cfg.Client.PublishRate > 0 && cfg.Client.PublishBurst < 1 {
		sl.ReportError(cfg.Client.PublishBurst, "PublishBurst", "PublishBurst", "burst_required", "")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		sl.ReportError(cfg.Metrics.Port, "Port", "Port", "port_required", "")
	}
}

/* ------------------------------------------------------------------ *
|  Public API                                                         |
* -------------------------------------------------------------------*/

// SetVersion sets the version from build information
func SetVersion(v string) {
	Version = v
}

// Load merges defaults → file (optional) → env vars, validates, and returns cfg.
func Load(path string, log *zap.Logger) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 1. defaults.yaml (embedded)
	if err := v.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	// 2. optional user file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.MergeInConfig(); err != nil {
			if log != nil {
				log.Debug("No config.yaml found, using defaults")
			}
		} else if log != nil {
			log.Info("Loaded config.yaml from current directory")
		}
	}

	// 3. env already merged by AutomaticEnv()

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := initializeLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	if log != nil {
		log.Debug("configuration loaded",
			zap.String("version", Version),
			zap.Int("relays", len(cfg.Client.Relays)),
			zap.Bool("storage", cfg.Storage.Enabled),
		)
	}
	return &cfg, nil
}

// Validate runs struct and cross-field validation. Flag overrides call it again.
func (c *Config) Validate() error {
	if err := validate.Struct(*c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// initializeLogger initializes the logger using the LoggingConfig
func initializeLogger(loggingConfig LoggingConfig) error {
	return logger.Init(
		logger.WithLevel(loggingConfig.Level),
		logger.WithFormat(loggingConfig.Format),
		logger.WithFile(loggingConfig.FilePath),
		logger.WithVersion(Version),
		logger.WithComponent("nostr-client"),
		logger.WithRotation(loggingConfig.MaxSize, loggingConfig.MaxBackups, loggingConfig.MaxAge),
	)
}

// formatValidationError converts validator errors into user-friendly messages
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(messages, "\n  - "))
	}
	return fmt.Errorf("configuration validation failed: %w", err)
}

// getFieldErrorMessage returns a user-friendly error message for a field validation error
func getFieldErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	value := fe.Value()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required but not provided", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, param, value)
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", field, param, value)
	case "relayurl":
		return fmt.Sprintf("%s must be a ws:// or wss:// relay URL (got: %v)", field, value)
	case "hexkey":
		return fmt.Sprintf("%s must be a 64-character hexadecimal string", field)
	case "timeout_duration":
		return fmt.Sprintf("%s must be between 1 second and 1 hour (got: %v)", field, value)
	case "log_level":
		return fmt.Sprintf("%s must be one of: debug, info, warn, error, fatal (got: %v)", field, value)
	case "log_format":
		return fmt.Sprintf("%s must be either 'console' or 'json' (got: %v)", field, value)
	case "dsn_required":
		return "STORAGE.DSN is required when storage is enabled"
	case "burst_required":
		return "CLIENT.PUBLISH_BURST must be at least 1 when PUBLISH_RATE is set"
	case "port_required":
		return "METRICS.PORT is required when metrics are enabled"
	default:
		return fmt.Sprintf("%s validation failed: %s (got: %v)", field, fe.Tag(), value)
	}
}
