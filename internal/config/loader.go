package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

const (
	envPrefix  = "OSMETRICS_"
	envFileVar = envPrefix + "CONFIG"
)

// Load builds a Config by layering, low to high precedence:
//  1. defaults (New(ctx))
//  2. YAML file named by OSMETRICS_CONFIG
//  3. env (prefix OSMETRICS_)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(envFileVar))
}

// LoadFile is Load with an explicit file path; an empty path skips the file
// layer.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	base := New(ctx)
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// OSMETRICS_QUEUE_SIZE -> queue_size
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.EventQueueSize <= 0:
		return invalid("queue_size must be positive, got %d", c.EventQueueSize)
	case c.WorkerCount <= 0:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.DedupeSize <= 0:
		return invalid("dedupe_size must be positive, got %d", c.DedupeSize)
	case c.StoreDriver != StoreMemory && c.StoreDriver != StoreSQLite:
		return invalid("store_driver must be %q or %q, got %q", StoreMemory, StoreSQLite, c.StoreDriver)
	case c.StoreDriver == StoreSQLite && c.SQLiteDSN == "":
		return invalid("sqlite_dsn must not be empty for the sqlite driver")
	case c.InactivityDays <= 0 || c.InactivityMinDays <= 0 || c.InactivityMaxDays <= 0:
		return invalid("inactivity windows must be positive")
	case c.InactivityMinDays > c.InactivityMaxDays:
		return invalid("inactivity_min_days %d exceeds inactivity_max_days %d", c.InactivityMinDays, c.InactivityMaxDays)
	case c.WebhookRateLimit < 0:
		return invalid("webhook_rate_limit must not be negative")
	case c.WebhookRateLimit > 0 && c.WebhookBurst < 1:
		return invalid("webhook_burst must be at least 1 when rate limiting")
	}
	if _, err := logger.ParseFormat(c.LogFormat); err != nil {
		return invalid("%v", err)
	}
	for repo, roster := range c.Maintainers {
		for i, m := range roster {
			if strings.TrimSpace(m.Login) == "" {
				return invalid("maintainers[%s][%d]: github_login must not be empty", repo, i)
			}
		}
	}
	return nil
}
