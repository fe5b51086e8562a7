package builder

import (
	"errors"
	"math"
	"testing"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/codec"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAccumulatorOverflow(t *testing.T) {
	Convey("Given a counter at the int64 ceiling", t, func() {
		acc := newAccumulator()
		acc.commit(model.Record{Kind: model.KindGeneric, Generic: &model.GenericRecord{ID: "g", MetricCount: codec.Of(math.MaxInt64)}})

		_, err := acc.combine(model.Record{Kind: model.KindGeneric, Generic: &model.GenericRecord{ID: "g", MetricCount: codec.Of(1)}})
		So(errors.Is(err, codec.ErrPrecisionLoss), ShouldBeTrue)
		So(acc.byID["g"].Generic.MetricCount.Value, ShouldEqual, int64(math.MaxInt64))
	})
}
