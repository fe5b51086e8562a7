package loadgen_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/http/api"
	service "github.com/opensearch-project/opensearch-metrics-sub001/internal/app"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/loadgen"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/logger"
)

func config(url string) loadgen.Config {
	return loadgen.Config{
		BaseURL:    url,
		Deliveries: 200,
		Duplicates: 20,
		Workers:    8,
		Repository: "loadgen/repo",
		Timeout:    5 * time.Second,
		Settle:     10 * time.Second,
		Seed:       42,
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a seeded config", t, func() {
		cfg := config("http://localhost")
		now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

		ds, expected, err := loadgen.Generate(cfg, now)
		So(err, ShouldBeNil)

		Convey("Unique deliveries come first, then redeliveries of them", func() {
			So(ds, ShouldHaveLength, 220)
			ids := make(map[string]bool)
			for _, d := range ds[:200] {
				ids[d.ID] = true
			}
			So(ids, ShouldHaveLength, 200)
			for _, d := range ds[200:] {
				So(ids[d.ID], ShouldBeTrue)
			}
		})

		Convey("Every payload parses and the expectations match the builder", func() {
			b := builder.New(builder.Config{})
			got := make(map[string]int64)
			for _, d := range ds[:200] {
				ev, err := model.ParseWebhook(d.Event, d.ID, d.Body)
				So(err, ShouldBeNil)
				So(ev.Repository, ShouldEqual, "loadgen/repo")
				recs, err := b.Build(ev, now)
				So(err, ShouldBeNil)
				for _, r := range recs {
					if r.Kind == model.KindGeneric {
						got[r.Generic.MetricName] += r.Generic.MetricCount.Value
					}
				}
			}
			So(got, ShouldResemble, expected)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Invalid configs are rejected", t, func() {
		cfg := config("http://localhost")
		cfg.Workers = 0
		So(errors.Is(cfg.Validate(), loadgen.ErrInvalidConfig), ShouldBeTrue)

		cfg = config("http://localhost")
		cfg.Duplicates = 500
		So(errors.Is(cfg.Validate(), loadgen.ErrInvalidConfig), ShouldBeTrue)

		So(config("http://localhost").Validate(), ShouldBeNil)
	})
}

func TestRunAgainstServer(t *testing.T) {
	Convey("Given a running ingestion server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithLogger(logger.Nop()), service.WithWorkerCount(4))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, api.WithLogger(logger.Nop())).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("Every unique delivery is counted exactly once", func() {
			st, err := loadgen.Run(ctx, config(srv.URL))
			So(err, ShouldBeNil)
			So(st.Generated, ShouldEqual, 220)
			So(st.Accepted, ShouldEqual, 200)
			So(st.Duplicates, ShouldEqual, 20)
			So(st.Failed, ShouldEqual, 0)
			So(st.Observed, ShouldResemble, st.Expected)
		})
	})
}
