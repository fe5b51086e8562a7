package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/config"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.GeneralIndex, convey.ShouldEqual, "opensearch_general_metrics")
			convey.So(cfg.LabelIndex, convey.ShouldEqual, "opensearch_label_metrics")
			convey.So(cfg.MaintainerIndexPrefix, convey.ShouldEqual, "maintainer-inactivity")
			convey.So(cfg.EventIndexPrefix, convey.ShouldEqual, "github-user-activity-events")
			convey.So(cfg.InactivityDays, convey.ShouldEqual, 365)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New(context.Background())

		cases := map[string]func(*config.Config){
			"unknown store driver":   func(c *config.Config) { c.StoreDriver = "postgres" },
			"sqlite without a dsn":   func(c *config.Config) { c.StoreDriver = config.StoreSQLite; c.SQLiteDSN = "" },
			"inverted inactivity":    func(c *config.Config) { c.InactivityMinDays = 400 },
			"zero workers":           func(c *config.Config) { c.WorkerCount = 0 },
			"negative rate":          func(c *config.Config) { c.WebhookRateLimit = -1 },
			"rate without burst":     func(c *config.Config) { c.WebhookBurst = 0 },
			"unknown log format":     func(c *config.Config) { c.LogFormat = "xml" },
			"maintainer with no login": func(c *config.Config) {
				c.Maintainers = map[string][]model.Maintainer{"example/repo": {{Name: "Ada"}}}
			},
		}
		for name, mutate := range cases {
			convey.Convey("When it has "+name, func() {
				mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
