// Package config defines the service configuration and its defaults.
package config

import (
	"context"
	"runtime"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr is the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory ingestion queue.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize is how many delivery ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver is memory or sqlite.
	StoreDriver string `koanf:"store_driver"`
	// SQLiteDSN is the database path when StoreDriver is sqlite.
	SQLiteDSN string `koanf:"sqlite_dsn"`

	// Index names. Monthly indices get a -MM-yyyy suffix.
	GeneralIndex          string `koanf:"general_index"`
	LabelIndex            string `koanf:"label_index"`
	MaintainerIndexPrefix string `koanf:"maintainer_index_prefix"`
	EventIndexPrefix      string `koanf:"event_index_prefix"`
	AlarmIndex            string `koanf:"alarm_index"`
	HealthIndex           string `koanf:"health_index"`

	// InactivityDays is the fixed staleness window for a single delivery.
	// Batches interpolate between InactivityMaxDays for the quietest
	// repository and InactivityMinDays for the busiest.
	InactivityDays    int `koanf:"inactivity_days"`
	InactivityMinDays int `koanf:"inactivity_min_days"`
	InactivityMaxDays int `koanf:"inactivity_max_days"`

	// Maintainers maps a repository full name to its maintainer roster.
	Maintainers map[string][]model.Maintainer `koanf:"maintainers"`

	// WebhookRateLimit is requests per second per client; zero disables.
	WebhookRateLimit float64 `koanf:"webhook_rate_limit"`
	WebhookBurst     int     `koanf:"webhook_burst"`

	// AlarmWebhookURL receives alarm notifications; empty disables forwarding.
	AlarmWebhookURL string `koanf:"alarm_webhook_url"`
	AlarmChannel    string `koanf:"alarm_channel"`
	AlarmUsername   string `koanf:"alarm_username"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		EventQueueSize:        10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            100_000,
		StoreDriver:           StoreMemory,
		SQLiteDSN:             "osmetrics.db",
		GeneralIndex:          "opensearch_general_metrics",
		LabelIndex:            "opensearch_label_metrics",
		MaintainerIndexPrefix: "maintainer-inactivity",
		EventIndexPrefix:      "github-user-activity-events",
		AlarmIndex:            "cloudwatch-alarms",
		HealthIndex:           "opensearch_health",
		InactivityDays:        365,
		InactivityMinDays:     90,
		InactivityMaxDays:     365,
		Maintainers:           map[string][]model.Maintainer{},
		WebhookRateLimit:      50,
		WebhookBurst:          100,
		AlarmChannel:          "#opensearch-metrics",
		AlarmUsername:         "osmetrics",
	}
}
