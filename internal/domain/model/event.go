// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/taxonomy"
)

// SourceEvent is one classified GitHub webhook occurrence. It lives only
// long enough to be turned into records.
type SourceEvent struct {
	DeliveryID   string
	Kind         taxonomy.Kind
	Organization string
	Repository   string
	Sender       string
	CreatedAt    time.Time
	Labels       []string
	Number       int
	Merged       bool
}

type login struct {
	Login string `json:"login"`
}

type label struct {
	Name string `json:"name"`
}

type subject struct {
	Number    int     `json:"number"`
	Labels    []label `json:"labels"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	Merged    bool    `json:"merged"`
}

type webhookPayload struct {
	Action       string `json:"action"`
	Organization *login `json:"organization"`
	Repository   *struct {
		FullName string `json:"full_name"`
		Owner    login  `json:"owner"`
	} `json:"repository"`
	Sender      *login   `json:"sender"`
	CreatedAt   string   `json:"created_at"`
	Label       *label   `json:"label"`
	Labels      []label  `json:"labels"`
	Issue       *subject `json:"issue"`
	PullRequest *subject `json:"pull_request"`
	Comment     *struct {
		CreatedAt string `json:"created_at"`
	} `json:"comment"`
	Review *struct {
		SubmittedAt string `json:"submitted_at"`
	} `json:"review"`
}

// ParseWebhook classifies a webhook delivery and extracts the fields record
// construction needs. An unrecognized event returns an error wrapping
// taxonomy.ErrUnrecognizedEvent. Missing discriminators are not checked here.
func ParseWebhook(eventHeader, deliveryID string, body []byte) (SourceEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return SourceEvent{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	kind, err := taxonomy.ClassifyDelivery(eventHeader, p.Action)
	if err != nil {
		return SourceEvent{}, err
	}
	return p.toEvent(kind, deliveryID)
}

// archived is the layout of a webhook stored by the receiver for replay.
type archived struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	UploadedAt string          `json:"uploaded_at"`
}

// ParseArchived reads a stored delivery of the form
// {"id", "name": "<subject>.<verb>", "payload", "uploaded_at"}.
func ParseArchived(body []byte) (SourceEvent, error) {
	var a archived
	if err := json.Unmarshal(body, &a); err != nil {
		return SourceEvent{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	kind, err := taxonomy.Classify(a.Name)
	if err != nil {
		return SourceEvent{}, err
	}
	var p webhookPayload
	if len(a.Payload) > 0 {
		if err := json.Unmarshal(a.Payload, &p); err != nil {
			return SourceEvent{}, fmt.Errorf("%w: payload: %w", ErrMalformedPayload, err)
		}
	}
	if p.CreatedAt == "" {
		p.CreatedAt = a.UploadedAt
	}
	return p.toEvent(kind, a.ID)
}

func (p *webhookPayload) toEvent(kind taxonomy.Kind, deliveryID string) (SourceEvent, error) {
	ev := SourceEvent{DeliveryID: deliveryID, Kind: kind}
	if p.Repository != nil {
		ev.Repository = p.Repository.FullName
		ev.Organization = p.Repository.Owner.Login
	}
	if p.Organization != nil && p.Organization.Login != "" {
		ev.Organization = p.Organization.Login
	}
	if p.Sender != nil {
		ev.Sender = p.Sender.Login
	}

	subj := p.Issue
	if kind.OnPullRequest() && p.PullRequest != nil {
		subj = p.PullRequest
	}

	stamps := []string{p.CreatedAt}
	if p.Comment != nil {
		stamps = append(stamps, p.Comment.CreatedAt)
	}
	if p.Review != nil {
		stamps = append(stamps, p.Review.SubmittedAt)
	}
	if subj != nil {
		stamps = append(stamps, subj.UpdatedAt, subj.CreatedAt)
		ev.Number = subj.Number
		ev.Merged = subj.Merged
	}
	for _, s := range stamps {
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return SourceEvent{}, fmt.Errorf("%w: timestamp %q: %w", ErrMalformedPayload, s, err)
		}
		ev.CreatedAt = t.UTC()
		break
	}

	switch {
	case kind.Verb() == "labeled" || kind.Verb() == "unlabeled":
		if p.Label != nil {
			ev.Labels = []string{p.Label.Name}
		}
	case subj != nil && len(subj.Labels) > 0:
		ev.Labels = uniqueLabels(subj.Labels)
	default:
		ev.Labels = uniqueLabels(p.Labels)
	}
	return ev, nil
}

func uniqueLabels(in []label) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, l := range in {
		name := strings.TrimSpace(l.Name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
