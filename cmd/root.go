package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Shugur-Network/nostr-client/internal/config"
	"github.com/Shugur-Network/nostr-client/internal/logger"
)

var (
	cfgFile string         // Path to custom config file (optional)
	cfg     *config.Config // Global reference to loaded configuration
)

// commands that run without a configuration
var skipConfig = map[string]bool{"version": true, "keygen": true, "help": true}

// rootCmd defines the main CLI command for nostr-client
var rootCmd = &cobra.Command{
	Use:   "nostr-client",
	Short: "nostr-client talks to many Nostr relays at once",
	Long:  `A multi-relay Nostr client: publish notes, follow a feed and fetch profiles across relays.`,
	Example: `
  nostr-client start --relays wss://relay.damus.io,wss://nos.lol
  nostr-client publish note "hello nostr"
  nostr-client fetch profile <pubkey> --timeout 5s
  nostr-client start --config /path/to/config.yaml --log-level debug`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipConfig[cmd.Name()] {
			return nil
		}

		if cfgFile != "" {
			absPath, err := filepath.Abs(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to resolve config path: %w", err)
			}
			cfgFile = absPath
		}

		// Load configuration (use nil logger to avoid sync issues)
		var err error
		cfg, err = config.Load(cfgFile, nil)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := applyFlagOverrides(cmd, cfg); err != nil {
			return err
		}
		return cfg.Validate()
	},
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior: show help when no subcommand is provided
		if err := cmd.Help(); err != nil {
			fmt.Fprintf(os.Stderr, "Error displaying help: %v\n", err)
		}
	},
}

// applyFlagOverrides copies explicitly set flags over the loaded config and
// rebuilds the logger when a logging flag changed.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("relays") {
		cfg.Client.Relays, _ = flags.GetStringSlice("relays")
	}
	if flags.Changed("identity-file") {
		cfg.General.IdentityFile, _ = flags.GetString("identity-file")
	}
	if flags.Changed("metrics-port") {
		cfg.Metrics.Port, _ = flags.GetInt("metrics-port")
		cfg.Metrics.Enabled = true
	}
	if flags.Changed("storage-dsn") {
		cfg.Storage.DSN, _ = flags.GetString("storage-dsn")
		cfg.Storage.Enabled = true
	}

	logChanged := false
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
		logChanged = true
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
		logChanged = true
	}
	if flags.Changed("log-file") {
		cfg.Logging.FilePath, _ = flags.GetString("log-file")
		logChanged = true
	}
	if !logChanged {
		return nil
	}
	return logger.Init(
		logger.WithLevel(cfg.Logging.Level),
		logger.WithFormat(cfg.Logging.Format),
		logger.WithFile(cfg.Logging.FilePath),
		logger.WithVersion(version),
		logger.WithComponent("nostr-client"),
		logger.WithRotation(cfg.Logging.MaxSize, cfg.Logging.MaxBackups, cfg.Logging.MaxAge),
	)
}

// Execute runs the root command with the provided context
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		_ = logger.Shutdown()
		os.Exit(1)
	}
}

func printWelcomeBanner() {
	fmt.Println("==================================================")
	fmt.Println("  nostr-client  " + GetVersion())
	fmt.Println("  one identity, many relays")
	fmt.Println("==================================================")
}

// init is automatically called before main(), sets up flags and subcommands
func init() {
	// Add persistent flags (inherited by all subcommands)
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Path to custom config file (optional)")
	flags.StringSlice("relays", nil, "Comma separated relay URLs (ws:// or wss://)")
	flags.String("identity-file", "", "Path to the identity key file")
	flags.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flags.String("log-file", "", "Path to the log file")
	flags.String("log-format", "console", "Log output format (console or json)")
	flags.Int("metrics-port", 8181, "Serve Prometheus metrics and /health on this port")
	flags.String("storage-dsn", "", "PostgreSQL DSN; enables event storage")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nostr-client",
		Long:  "Print the version number of nostr-client along with build information",
		Run: func(cmd *cobra.Command, args []string) {
			if detailed, _ := cmd.Flags().GetBool("detailed"); detailed {
				fmt.Println(GetFullVersionInfo())
			} else {
				fmt.Println(GetVersionWithPrefix())
			}
		},
	}
	versionCmd.Flags().BoolP("detailed", "d", false, "Show detailed version information")

	rootCmd.AddCommand(versionCmd, newStartCmd(), newPublishCmd(), newFetchCmd(), newKeygenCmd())
}
