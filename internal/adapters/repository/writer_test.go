package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/adapters/repository"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/codec"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

var names = repository.IndexNamer{
	General:          "opensearch_general_metrics",
	Label:            "opensearch_label_metrics",
	MaintainerPrefix: "maintainer-inactivity",
	EventPrefix:      "github-user-activity-events",
	Alarm:            "cloudwatch-alarms",
	Health:           "opensearch_health",
}

func generic(id string, n int64) model.Record {
	return model.Record{Kind: model.KindGeneric, Generic: &model.GenericRecord{
		ID: id, CurrentDate: "2024-01-15", Repository: "example/repo", MetricName: "Created Issues", MetricCount: codec.Of(n),
	}}
}

func counted(id string, deliveries ...string) model.Record {
	rec := generic(id, int64(len(deliveries)))
	for _, d := range deliveries {
		rec.Sources = append(rec.Sources, model.Source{Delivery: d})
	}
	return rec
}

func TestIndexNamer(t *testing.T) {
	Convey("Given the default index names", t, func() {
		Convey("Counting records go to fixed indices", func() {
			idx, err := names.Index(generic("g", 1))
			So(err, ShouldBeNil)
			So(idx, ShouldEqual, "opensearch_general_metrics")
		})

		Convey("Maintainer and event records go to monthly indices", func() {
			m := model.Record{Kind: model.KindMaintainer, Maintainer: &model.MaintainerRecord{ID: "m", CurrentDate: "2024-03-02"}}
			idx, err := names.Index(m)
			So(err, ShouldBeNil)
			So(idx, ShouldEqual, "maintainer-inactivity-03-2024")

			e := model.Record{Kind: model.KindEvent, Event: &model.EventRecord{ID: "e", CreatedAt: time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)}}
			idx, _ = names.Index(e)
			So(idx, ShouldEqual, "github-user-activity-events-12-2023")
		})

		Convey("Unknown kinds are rejected", func() {
			_, err := names.Index(model.Record{Kind: "nope"})
			So(errors.Is(err, model.ErrUnknownRecord), ShouldBeTrue)
		})
	})
}

func TestWriter(t *testing.T) {
	Convey("Given a writer over a memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		w := repository.NewWriter(store, names)

		Convey("Generic counts accumulate across deliveries", func() {
			n, err := w.Write(ctx, []model.Record{counted("g", "d1")})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			_, err = w.Write(ctx, []model.Record{counted("g", "d2", "d3")})
			So(err, ShouldBeNil)

			rec, err := w.Lookup(ctx, names.General, "g")
			So(err, ShouldBeNil)
			So(rec.Generic.MetricCount, ShouldResemble, codec.Of(3))

			Convey("and rewriting a delivery leaves the count unchanged", func() {
				_, err := w.Write(ctx, []model.Record{counted("g", "d1"), counted("g", "d2", "d3")})
				So(err, ShouldBeNil)
				_, err = w.Write(ctx, []model.Record{counted("g", "d3", "d4")})
				So(err, ShouldBeNil)

				rec, err := w.Lookup(ctx, names.General, "g")
				So(err, ShouldBeNil)
				So(rec.Generic.MetricCount, ShouldResemble, codec.Of(4))
			})

			Convey("and a new writer over the same store remembers what was counted", func() {
				again := repository.NewWriter(store, names)
				_, err := again.Write(ctx, []model.Record{counted("g", "d1")})
				So(err, ShouldBeNil)

				rec, err := again.Lookup(ctx, names.General, "g")
				So(err, ShouldBeNil)
				So(rec.Generic.MetricCount, ShouldResemble, codec.Of(3))
			})
		})

		Convey("A delivery repeated inside one record counts once", func() {
			_, err := w.Write(ctx, []model.Record{counted("g", "d1", "d1")})
			So(err, ShouldBeNil)
			rec, err := w.Lookup(ctx, names.General, "g")
			So(err, ShouldBeNil)
			So(rec.Generic.MetricCount, ShouldResemble, codec.Of(1))
		})

		Convey("Label sides count their own deliveries", func() {
			label := func(sources ...model.Source) model.Record {
				return model.Record{Kind: model.KindLabel, Label: &model.LabelRecord{
					ID: "l", CurrentDate: "2024-01-15", Repository: "example/repo", LabelName: "bug",
				}, Sources: sources}
			}
			issue := model.Source{Delivery: "i1", Side: model.SideIssue}
			pull := model.Source{Delivery: "p1", Side: model.SidePull}
			_, err := w.Write(ctx, []model.Record{label(issue), label(pull), label(issue, pull)})
			So(err, ShouldBeNil)

			rec, err := w.Lookup(ctx, names.Label, "l")
			So(err, ShouldBeNil)
			So(rec.Label.LabelIssueCount, ShouldResemble, codec.Of(1))
			So(rec.Label.LabelPullCount, ShouldResemble, codec.Of(1))
		})

		Convey("Counts without sources replace what is stored", func() {
			_, err := w.Write(ctx, []model.Record{generic("g", 1), generic("g", 5)})
			So(err, ShouldBeNil)
			rec, err := w.Lookup(ctx, names.General, "g")
			So(err, ShouldBeNil)
			So(rec.Generic.MetricCount, ShouldResemble, codec.Of(5))
		})

		Convey("Concurrent writes of one id are not lost", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = w.Write(ctx, []model.Record{counted("g", fmt.Sprintf("d%d", i), "d0")})
				}()
			}
			wg.Wait()

			rec, err := w.Lookup(ctx, names.General, "g")
			So(err, ShouldBeNil)
			So(rec.Generic.MetricCount, ShouldResemble, codec.Of(50))
		})

		Convey("Event records replace", func() {
			ev := model.Record{Kind: model.KindEvent, Event: &model.EventRecord{ID: "e", Action: "opened", CreatedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}}
			_, err := w.Write(ctx, []model.Record{ev, ev})
			So(err, ShouldBeNil)
			rec, err := w.Lookup(ctx, "github-user-activity-events-01-2024", "e")
			So(err, ShouldBeNil)
			So(rec.Event.Action, ShouldEqual, "opened")
		})

		Convey("A record that cannot be encoded fails alone", func() {
			bad := generic("bad", -1)
			n, err := w.Write(ctx, []model.Record{bad, generic("good", 1)})
			So(n, ShouldEqual, 1)
			So(errors.Is(err, repository.ErrSerialization), ShouldBeTrue)
			So(errors.Is(err, codec.ErrNegative), ShouldBeTrue)

			_, err = w.Lookup(ctx, names.General, "good")
			So(err, ShouldBeNil)
		})

		Convey("Lookup of a missing id is not found", func() {
			_, err := w.Lookup(ctx, names.General, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
