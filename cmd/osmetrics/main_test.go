package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"text/tabwriter"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/taxonomy"
)

func writeArchived(t *testing.T, root, kind, day, name, body string) {
	t.Helper()
	dir := filepath.Join(root, kind, day)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRender(t *testing.T) {
	convey.Convey("Given a value to print", t, func() {
		v := []map[string]any{{"kind": "issues.opened", "scored": true}}
		table := func(tw *tabwriter.Writer) { _, _ = tw.Write([]byte("KIND\tSCORED\nissues.opened\ttrue\n")) }

		convey.Convey("JSON output is indented JSON", func() {
			var buf bytes.Buffer
			convey.So(render(&buf, "json", v, table), convey.ShouldBeNil)
			var got []map[string]any
			convey.So(json.Unmarshal(buf.Bytes(), &got), convey.ShouldBeNil)
			convey.So(got[0]["kind"], convey.ShouldEqual, "issues.opened")
		})

		convey.Convey("YAML output uses the JSON field names", func() {
			var buf bytes.Buffer
			convey.So(render(&buf, "yaml", v, table), convey.ShouldBeNil)
			var got []map[string]any
			convey.So(yaml.Unmarshal(buf.Bytes(), &got), convey.ShouldBeNil)
			convey.So(got[0]["scored"], convey.ShouldEqual, true)
		})

		convey.Convey("Table output aligns columns", func() {
			var buf bytes.Buffer
			convey.So(render(&buf, "table", v, table), convey.ShouldBeNil)
			convey.So(buf.String(), convey.ShouldContainSubstring, "issues.opened  true")
		})

		convey.Convey("Unknown formats are rejected", func() {
			convey.So(render(&bytes.Buffer{}, "xml", v, table), convey.ShouldNotBeNil)
		})
	})
}

func TestReplayRange(t *testing.T) {
	now := time.Date(2024, 1, 15, 18, 30, 0, 0, time.UTC)

	convey.Convey("Defaults run from yesterday to today", t, func() {
		from, to, err := replayRange(now, "", "")
		convey.So(err, convey.ShouldBeNil)
		convey.So(from, convey.ShouldEqual, time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC))
		convey.So(to, convey.ShouldEqual, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	})

	convey.Convey("An inverted range is rejected", t, func() {
		_, _, err := replayRange(now, "2024-01-10", "2024-01-09")
		convey.So(err, convey.ShouldNotBeNil)
	})

	convey.Convey("A malformed day is rejected", t, func() {
		_, _, err := replayRange(now, "01/10/2024", "")
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestReadArchive(t *testing.T) {
	convey.Convey("Given an archive spanning two days", t, func() {
		root := t.TempDir()
		payload := `{"action":"closed","pull_request":{"number":1,"merged":true,"labels":[{"name":"bug"}]},` +
			`"repository":{"full_name":"example/repo","owner":{"login":"example"}},"sender":{"login":"octocat"}}`
		writeArchived(t, root, "pull_request.closed", "2024-01-15", "b.json",
			`{"id":"d2","name":"pull_request.closed","payload":`+payload+`,"uploaded_at":"2024-01-15T10:00:00Z"}`)
		writeArchived(t, root, "pull_request.closed", "2024-01-14", "a.json",
			`{"id":"d1","name":"pull_request.closed","payload":`+payload+`,"uploaded_at":"2024-01-14T10:00:00Z"}`)
		writeArchived(t, root, "issues.opened", "2024-01-15", "c.json",
			`{"id":"d3","name":"issues.opened","payload":{"action":"opened","issue":{"number":2},"repository":{"full_name":"example/repo"}},"uploaded_at":"2024-01-15T11:00:00Z"}`)
		writeArchived(t, root, "issues.opened", "2024-01-15", "broken.json", `{not json`)
		writeArchived(t, root, "issues.opened", "2024-01-16", "late.json",
			`{"id":"d4","name":"issues.opened","payload":{},"uploaded_at":"2024-01-16T11:00:00Z"}`)

		from := time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)
		to := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
		days, skipped, err := readArchive(context.Background(), root, from, to)

		convey.Convey("Events in range are grouped by day in taxonomy order", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(skipped, convey.ShouldEqual, 1)
			convey.So(days, convey.ShouldHaveLength, 2)

			convey.So(days[0].Day, convey.ShouldEqual, from)
			convey.So(days[0].Events, convey.ShouldHaveLength, 1)
			convey.So(days[0].Events[0].DeliveryID, convey.ShouldEqual, "d1")

			convey.So(days[1].Day, convey.ShouldEqual, to)
			convey.So(days[1].Events, convey.ShouldHaveLength, 2)
			convey.So(days[1].Events[0].DeliveryID, convey.ShouldEqual, "d3")
			convey.So(days[1].Events[0].Kind, convey.ShouldEqual, taxonomy.IssuesOpened)
			convey.So(days[1].Events[1].DeliveryID, convey.ShouldEqual, "d2")
			convey.So(days[1].Events[1].Merged, convey.ShouldBeTrue)
		})
	})

	convey.Convey("A missing archive is an error", t, func() {
		_, _, err := readArchive(context.Background(), filepath.Join(t.TempDir(), "nope"), time.Now(), time.Now())
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestCommands(t *testing.T) {
	convey.Convey("taxonomy lists all fifteen kinds", t, func() {
		out, err := execute("taxonomy", "-o", "json")
		convey.So(err, convey.ShouldBeNil)

		var kinds []kindInfo
		convey.So(json.Unmarshal([]byte(out), &kinds), convey.ShouldBeNil)
		convey.So(kinds, convey.ShouldHaveLength, len(taxonomy.All()))
		convey.So(kinds[0].Kind, convey.ShouldEqual, "issues.opened")
		convey.So(kinds[len(kinds)-1].Kind, convey.ShouldEqual, "gollum")
		convey.So(kinds[len(kinds)-1].Scored, convey.ShouldBeFalse)
	})

	convey.Convey("replay prints the records of an archive", t, func() {
		root := t.TempDir()
		writeArchived(t, root, "issues.opened", "2024-01-15", "a.json",
			`{"id":"d1","name":"issues.opened","payload":{"action":"opened","issue":{"number":1,"labels":[{"name":"bug"}]},"repository":{"full_name":"example/repo"},"sender":{"login":"octocat"}},"uploaded_at":"2024-01-15T10:00:00Z"}`)

		out, err := execute("replay", root, "--from", "2024-01-15", "--to", "2024-01-15", "-o", "json")
		convey.So(err, convey.ShouldBeNil)

		var recs []map[string]any
		convey.So(json.Unmarshal([]byte(out), &recs), convey.ShouldBeNil)
		names := map[any]bool{}
		for _, r := range recs {
			names[r["metric_name"]] = true
			names[r["label_name"]] = true
		}
		convey.So(names["Created Issues"], convey.ShouldBeTrue)
		convey.So(names["bug"], convey.ShouldBeTrue)
	})

	convey.Convey("replay files each archived day under its own date", t, func() {
		root := t.TempDir()
		for _, day := range []string{"2024-01-14", "2024-01-15"} {
			writeArchived(t, root, "issues.closed", day, "a.json",
				`{"id":"d-`+day+`","name":"issues.closed","payload":{"action":"closed","issue":{"number":1},"repository":{"full_name":"example/repo"},"sender":{"login":"octocat"}},"uploaded_at":"`+day+`T10:00:00Z"}`)
		}

		out, err := execute("replay", root, "--from", "2024-01-14", "--to", "2024-01-15", "-o", "json")
		convey.So(err, convey.ShouldBeNil)

		var recs []map[string]any
		convey.So(json.Unmarshal([]byte(out), &recs), convey.ShouldBeNil)
		dates := map[any]float64{}
		for _, r := range recs {
			if r["metric_name"] == "Closed Issues" {
				dates[r["current_date"]] = r["metric_count"].(float64)
			}
		}
		convey.So(dates, convey.ShouldResemble, map[any]float64{"2024-01-14": 1, "2024-01-15": 1})
	})

	convey.Convey("health scores an empty store as healthy", t, func() {
		out, err := execute("health", "example/repo", "--theme", "github_health", "--date", "2024-01-15", "-o", "json")
		convey.So(err, convey.ShouldBeNil)

		var r map[string]any
		convey.So(json.Unmarshal([]byte(out), &r), convey.ShouldBeNil)
		convey.So(r["action_items"], convey.ShouldResemble, []any{"No Immediate Action Items"})
	})
}
