package main

import (
	"context"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/notify"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/repository"
	service "github.com/opensearch-project/opensearch-metrics-sub001/internal/app"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/config"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		s, err := repository.OpenSQLite(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

func indexNames(cfg *config.Config) repository.IndexNamer {
	return repository.IndexNamer{
		General:          cfg.GeneralIndex,
		Label:            cfg.LabelIndex,
		MaintainerPrefix: cfg.MaintainerIndexPrefix,
		EventPrefix:      cfg.EventIndexPrefix,
		Alarm:            cfg.AlarmIndex,
		Health:           cfg.HealthIndex,
	}
}

func builderConfig(cfg *config.Config) builder.Config {
	return builder.Config{
		Maintainers: cfg.Maintainers,
		Inactivity: builder.InactivityPolicy{
			Window:    time.Duration(cfg.InactivityDays) * builder.Day,
			MinWindow: time.Duration(cfg.InactivityMinDays) * builder.Day,
			MaxWindow: time.Duration(cfg.InactivityMaxDays) * builder.Day,
		},
	}
}

func notifier(cfg *config.Config, log logger.Logger) notify.Notifier {
	if cfg.AlarmWebhookURL == "" {
		return notify.Discard{}
	}
	return notify.NewWebhook(cfg.AlarmWebhookURL,
		notify.WithChannel(cfg.AlarmChannel),
		notify.WithUsername(cfg.AlarmUsername),
		notify.WithLogger(log.Named("notify")),
	)
}

// newService opens the configured store and wires a service over it. The
// service owns the store and closes it on Stop.
func newService(ctx context.Context, cfg *config.Config) (*service.Service, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log := logger.Get()
	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithStore(store),
		service.WithIndexNamer(indexNames(cfg)),
		service.WithBuilderConfig(builderConfig(cfg)),
		service.WithNotifier(notifier(cfg, log)),
	), nil
}
