package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/config"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
	output   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "osmetrics",
	Short: "GitHub and CloudWatch metrics ingestion",
	Long: `osmetrics turns GitHub webhook deliveries and CloudWatch alarms into
metric documents and scores repository health from them.

Commands:
  serve     Run the webhook, alarm and health HTTP API
  replay    Rebuild records from archived deliveries
  health    Score a repository from stored records
  taxonomy  List the recognized event kinds
  loadgen   Drive a running server with synthetic deliveries`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// A missing .env is normal outside local development.
		_ = godotenv.Load()
		return setupLogging()
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $OSMETRICS_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (json, table, yaml)")
}

// loadConfig reads the config file named by --config, or by
// OSMETRICS_CONFIG when the flag is unset, then the environment.
func loadConfig(ctx context.Context) (*config.Config, error) {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return config.Load(ctx)
	}
	return config.LoadFile(ctx, path)
}

// setupLogging writes logs to stderr so stdout carries command output only.
func setupLogging() error {
	ctx := context.Background()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(ctx, "invalid log level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}
