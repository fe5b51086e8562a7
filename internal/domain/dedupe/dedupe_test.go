package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("A new delivery is recorded", func() {
			So(d.SeenAndRecord(ctx, "delivery-1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("A redelivery is reported as seen", func() {
			d.SeenAndRecord(ctx, "delivery-1")
			So(d.SeenAndRecord(ctx, "delivery-1"), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 1)
		})

		Convey("Empty ids are never recorded", func() {
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("The oldest id is evicted when full", func() {
			for i := 1; i <= 4; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("delivery-%d", i))
			}
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "delivery-4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "delivery-2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "delivery-1"), ShouldBeFalse)
		})

		Convey("Unrecord allows a retry", func() {
			d.SeenAndRecord(ctx, "delivery-1")
			d.Unrecord(ctx, "delivery-1")
			So(d.Size(), ShouldEqual, 0)
			So(d.SeenAndRecord(ctx, "delivery-1"), ShouldBeFalse)

			Convey("And unrecording an unknown id is a no-op", func() {
				d.Unrecord(ctx, "missing")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("A freed slot does not evict a live id", func() {
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.SeenAndRecord(ctx, "c")
			d.Unrecord(ctx, "a")
			d.SeenAndRecord(ctx, "d") // reuses a's slot
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
		})
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	Convey("Given concurrent deliveries of the same ids", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("delivery-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Each id is new exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
