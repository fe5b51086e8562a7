package codec_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/codec"
	. "github.com/smartystreets/goconvey/convey"
)

type doc struct {
	Issues codec.Count `json:"issues"`
	Pulls  codec.Count `json:"pulls"`
}

func TestCountEncoding(t *testing.T) {
	Convey("Given nullable counters", t, func() {
		Convey("Null encodes as a JSON null token and decodes back to null", func() {
			b, err := json.Marshal(doc{Issues: codec.Null(), Pulls: codec.Of(1)})
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"issues":null,"pulls":1}`)

			var d doc
			So(json.Unmarshal(b, &d), ShouldBeNil)
			So(d.Issues.Valid, ShouldBeFalse)
			So(d.Pulls, ShouldResemble, codec.Of(1))
		})

		Convey("Zero is present and never becomes null", func() {
			b, err := json.Marshal(codec.Of(0))
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "0")

			var c codec.Count
			So(json.Unmarshal(b, &c), ShouldBeNil)
			So(c.Valid, ShouldBeTrue)
			So(c.Value, ShouldEqual, 0)
		})

		Convey("Values beyond 2^53 survive exactly", func() {
			for _, v := range []int64{math.MaxInt64, math.MaxInt64 - 1, 1<<53 + 1} {
				b, err := json.Marshal(codec.Of(v))
				So(err, ShouldBeNil)

				var c codec.Count
				So(json.Unmarshal(b, &c), ShouldBeNil)
				So(c.Value, ShouldEqual, v)
			}
			b, _ := json.Marshal(codec.Of(math.MaxInt64))
			So(string(b), ShouldEqual, "9223372036854775807")
		})

		Convey("Negative counters are refused on encode", func() {
			_, err := json.Marshal(codec.Of(-1))
			So(err, ShouldNotBeNil)
			So(errors.Is(err, codec.ErrNegative), ShouldBeTrue)
		})
	})
}

func TestCountDecodingRejectsLossyInput(t *testing.T) {
	Convey("Given inputs that cannot be held exactly", t, func() {
		for _, in := range []string{
			"9223372036854775808",
			"1.5",
			"2.0",
			"1e3",
			`"12"`,
		} {
			var c codec.Count
			err := json.Unmarshal([]byte(in), &c)
			So(errors.Is(err, codec.ErrPrecisionLoss), ShouldBeTrue)
		}

		var c codec.Count
		So(errors.Is(json.Unmarshal([]byte("-4"), &c), codec.ErrNegative), ShouldBeTrue)
	})
}

func TestCountArithmetic(t *testing.T) {
	Convey("Given counters to combine", t, func() {
		Convey("Null is the identity for Add", func() {
			got, err := codec.Add(codec.Null(), codec.Of(3))
			So(err, ShouldBeNil)
			So(got, ShouldResemble, codec.Of(3))

			got, err = codec.Add(codec.Of(2), codec.Null())
			So(err, ShouldBeNil)
			So(got, ShouldResemble, codec.Of(2))

			got, err = codec.Add(codec.Null(), codec.Null())
			So(err, ShouldBeNil)
			So(got.Valid, ShouldBeFalse)
		})

		Convey("Present values sum", func() {
			got, err := codec.Add(codec.Of(2), codec.Of(5))
			So(err, ShouldBeNil)
			So(got, ShouldResemble, codec.Of(7))
		})

		Convey("Overflow is reported, not wrapped", func() {
			_, err := codec.Add(codec.Of(math.MaxInt64), codec.Of(1))
			So(errors.Is(err, codec.ErrPrecisionLoss), ShouldBeTrue)
		})

		Convey("Negative operands are refused on either side", func() {
			_, err := codec.Add(codec.Of(math.MinInt64), codec.Of(-1))
			So(errors.Is(err, codec.ErrNegative), ShouldBeTrue)

			_, err = codec.Add(codec.Of(5), codec.Of(-1))
			So(errors.Is(err, codec.ErrNegative), ShouldBeTrue)

			_, err = codec.Add(codec.Null(), codec.Of(-3))
			So(errors.Is(err, codec.ErrNegative), ShouldBeTrue)
		})

		Convey("Unsigned inputs above int64 are rejected", func() {
			_, err := codec.FromUint64(math.MaxUint64)
			So(errors.Is(err, codec.ErrPrecisionLoss), ShouldBeTrue)

			c, err := codec.FromUint64(math.MaxInt64)
			So(err, ShouldBeNil)
			So(c.Value, ShouldEqual, int64(math.MaxInt64))
		})

		Convey("String reports null or the digits", func() {
			So(codec.Null().String(), ShouldEqual, "null")
			So(codec.Of(42).String(), ShouldEqual, "42")
		})
	})
}
