package identity_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/identity"
	"github.com/smartystreets/goconvey/convey"
)

func TestIdentity(t *testing.T) {
	convey.Convey("Given a record key", t, func() {
		day := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
		key := identity.NewKey("example/repo", "label", "bug", day)

		convey.Convey("The canonical form is pipe delimited with a day-granular date", func() {
			c, err := identity.Canonical(key)
			convey.So(err, convey.ShouldBeNil)
			convey.So(c, convey.ShouldEqual, "example/repo|label|bug|2024-01-15")
		})

		convey.Convey("The id is the SHA-1 UUID of the canonical form", func() {
			id, err := identity.ID(key)
			convey.So(err, convey.ShouldBeNil)
			want := uuid.NewSHA1(identity.Namespace(), []byte("example/repo|label|bug|2024-01-15")).String()
			convey.So(id, convey.ShouldEqual, want)
		})

		convey.Convey("The namespace is fixed", func() {
			want := uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://metrics.opensearch.org/records"))
			convey.So(identity.Namespace(), convey.ShouldEqual, want)
		})

		convey.Convey("Repeated calls and other times on the same day agree", func() {
			a, _ := identity.ID(key)
			b, _ := identity.ID(key)
			later := identity.NewKey("example/repo", "label", "bug", day.Add(10*time.Hour))
			c, _ := identity.ID(later)
			convey.So(a, convey.ShouldEqual, b)
			convey.So(a, convey.ShouldEqual, c)
		})

		convey.Convey("Dates are normalised to UTC", func() {
			loc := time.FixedZone("UTC+10", 10*60*60)
			local := identity.NewKey("example/repo", "label", "bug", time.Date(2024, 1, 16, 5, 0, 0, 0, loc))
			c, err := identity.Canonical(local)
			convey.So(err, convey.ShouldBeNil)
			convey.So(c, convey.ShouldEqual, "example/repo|label|bug|2024-01-15")
		})

		convey.Convey("Different discriminators give different ids", func() {
			seen := make(map[string]string)
			for i := 0; i < 500; i++ {
				d := fmt.Sprintf("label-%d", i)
				id, err := identity.ID(identity.NewKey("example/repo", "label", d, day))
				convey.So(err, convey.ShouldBeNil)
				_, dup := seen[id]
				convey.So(dup, convey.ShouldBeFalse)
				seen[id] = d
			}
		})

		convey.Convey("Separators inside a field cannot forge another key", func() {
			joined := identity.NewKey("example/repo", "label", "a|b", day)
			split := identity.Key{Repository: "example/repo", Kind: "label", Discriminators: []string{"a", "b"}, Date: day}
			a, _ := identity.ID(joined)
			b, _ := identity.ID(split)
			convey.So(a, convey.ShouldNotEqual, b)
		})

		convey.Convey("Empty fields are rejected", func() {
			cases := []identity.Key{
				identity.NewKey("", "label", "bug", day),
				identity.NewKey("example/repo", "", "bug", day),
				identity.NewKey("example/repo", "label", " ", day),
				identity.NewKey("example/repo", "label", "bug", time.Time{}),
			}
			for _, k := range cases {
				_, err := identity.ID(k)
				convey.So(errors.Is(err, identity.ErrEmptyField), convey.ShouldBeTrue)
			}
		})
	})
}
