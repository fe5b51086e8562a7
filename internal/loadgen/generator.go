package loadgen

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/taxonomy"
)

// Delivery is one webhook request.
type Delivery struct {
	Event string
	ID    string
	Body  []byte
}

var (
	senders = []string{"octocat", "hubot", "monalisa", "defunkt"}
	labels  = []string{"bug", "enhancement", "untriaged", "documentation"}

	// kinds sent by the generator.
	kinds = []taxonomy.Kind{
		taxonomy.IssuesOpened,
		taxonomy.IssuesClosed,
		taxonomy.IssueCommentCreated,
		taxonomy.PullRequestOpened,
		taxonomy.PullRequestClosed,
		taxonomy.PullRequestReviewSubmitted,
		taxonomy.PullRequestReviewCommentCreated,
		taxonomy.Gollum,
	}
)

// Generate returns cfg.Deliveries unique deliveries followed by
// cfg.Duplicates redeliveries, and the generic counts they should produce.
func Generate(cfg Config, now time.Time) ([]Delivery, map[string]int64, error) {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	expected := make(map[string]int64)
	out := make([]Delivery, 0, cfg.Deliveries+cfg.Duplicates)

	for i := range cfg.Deliveries {
		k := kinds[rng.IntN(len(kinds))]
		var lbls []string
		if rng.IntN(3) > 0 {
			lbls = []string{labels[rng.IntN(len(labels))]}
		}
		merged := rng.IntN(2) == 0
		body, err := payload(cfg.Repository, k, i+1, senders[rng.IntN(len(senders))], lbls, merged, now)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, Delivery{Event: k.Subject(), ID: uuid.NewString(), Body: body})
		for _, m := range metricsFor(k, lbls, merged) {
			expected[m]++
		}
	}
	for range cfg.Duplicates {
		out = append(out, out[rng.IntN(cfg.Deliveries)])
	}
	return out, expected, nil
}

// metricsFor lists the generic metrics one event increments.
func metricsFor(k taxonomy.Kind, lbls []string, merged bool) []string {
	switch k {
	case taxonomy.IssuesOpened:
		out := []string{builder.MetricCreatedIssues}
		if len(lbls) == 0 {
			out = append(out, builder.MetricUnlabelledIssues)
		}
		for _, l := range lbls {
			if l == "untriaged" {
				out = append(out, builder.MetricUntriagedIssues)
			}
		}
		return out
	case taxonomy.IssuesClosed:
		return []string{builder.MetricClosedIssues}
	case taxonomy.IssueCommentCreated:
		return []string{builder.MetricIssueComments}
	case taxonomy.PullRequestOpened:
		if len(lbls) == 0 {
			return []string{builder.MetricCreatedPullRequests, builder.MetricUnlabelledPullRequests}
		}
		return []string{builder.MetricCreatedPullRequests}
	case taxonomy.PullRequestClosed:
		if merged {
			return []string{builder.MetricPullRequestsMerged}
		}
	case taxonomy.PullRequestReviewSubmitted:
		return []string{builder.MetricPullRequestReviews}
	case taxonomy.PullRequestReviewCommentCreated:
		return []string{builder.MetricPullComments}
	}
	return nil
}

func payload(repo string, k taxonomy.Kind, n int, sender string, lbls []string, merged bool, now time.Time) ([]byte, error) {
	ts := now.UTC().Format(time.RFC3339)
	ls := make([]map[string]string, len(lbls))
	for i, l := range lbls {
		ls[i] = map[string]string{"name": l}
	}
	subject := map[string]any{"number": n, "created_at": ts, "updated_at": ts, "labels": ls}

	body := map[string]any{
		"repository": map[string]any{"full_name": repo, "owner": map[string]string{"login": "loadgen"}},
		"sender":     map[string]string{"login": sender},
	}
	if v := k.Verb(); v != "" {
		body["action"] = v
	}
	switch {
	case k.OnIssue():
		body["issue"] = subject
	case k.OnPullRequest():
		subject["merged"] = merged
		body["pull_request"] = subject
	}
	switch k {
	case taxonomy.IssueCommentCreated, taxonomy.PullRequestReviewCommentCreated:
		body["comment"] = map[string]any{"created_at": ts}
	case taxonomy.PullRequestReviewSubmitted:
		body["review"] = map[string]any{"submitted_at": ts}
	case taxonomy.Gollum:
		body["pages"] = []map[string]string{{"page_name": "Home", "action": "edited"}}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", k, err)
	}
	return b, nil
}
