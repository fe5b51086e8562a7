// Package repository persists metric records as JSON documents grouped by
// index.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

// Document is one stored record. Body holds the encoded record.
type Document struct {
	Index      string
	ID         string
	Kind       model.RecordKind
	Repository string
	Date       string
	Body       json.RawMessage
}

func (d Document) validate() error {
	if d.Index == "" || d.ID == "" {
		return fmt.Errorf("%w: index and id are required", ErrInvalidDoc)
	}
	if !json.Valid(d.Body) {
		return fmt.Errorf("%w: %s/%s body is not JSON", ErrInvalidDoc, d.Index, d.ID)
	}
	return nil
}

// Store is a keyed document store. Upsert is idempotent: writing the same
// (index, id) twice leaves the last body.
type Store interface {
	Upsert(ctx context.Context, docs ...Document) error
	// Get returns ErrNotFound for an unknown (index, id).
	Get(ctx context.Context, index, id string) (Document, error)
	Count(ctx context.Context, index string) (int, error)
	Close() error
}

// IndexNamer maps records to index names. Maintainer and event indices are
// monthly and carry a -MM-yyyy suffix.
type IndexNamer struct {
	General          string
	Label            string
	MaintainerPrefix string
	EventPrefix      string
	Alarm            string
	Health           string
}

// Index returns the index rec belongs in.
func (n IndexNamer) Index(rec model.Record) (string, error) {
	switch rec.Kind {
	case model.KindGeneric:
		return n.General, nil
	case model.KindLabel:
		return n.Label, nil
	case model.KindMaintainer:
		return Monthly(n.MaintainerPrefix, rec.Date()), nil
	case model.KindEvent:
		return Monthly(n.EventPrefix, rec.Date()), nil
	case model.KindAlarm:
		return n.Alarm, nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnknownRecord, rec.Kind)
}

// SourcesIndex names the index holding the counted deliveries of records
// stored in index.
func (n IndexNamer) SourcesIndex(index string) string {
	return index + "_sources"
}

// Monthly appends the -MM-yyyy suffix of t to prefix.
func Monthly(prefix string, t time.Time) string {
	return prefix + "-" + t.UTC().Format("01-2006")
}

// Encode turns rec into a document for its index.
func (n IndexNamer) Encode(rec model.Record) (Document, error) {
	index, err := n.Index(rec)
	if err != nil {
		return Document{}, err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s: %w", ErrSerialization, rec.ID(), err)
	}
	return Document{
		Index:      index,
		ID:         rec.ID(),
		Kind:       rec.Kind,
		Repository: rec.Repository(),
		Date:       rec.Date().UTC().Format(model.DateLayout),
		Body:       body,
	}, nil
}
