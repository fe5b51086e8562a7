package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/builder"
	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
	"github.com/opensearch-project/opensearch-metrics-sub001/pkg/metrics"
)

const lockStripes = 64

// Writer persists records, folding counting variants into what is already
// stored under the same id. Generic and label records carrying sources
// count each delivery once: the deliveries already counted into a record
// are kept in a companion document in the sources index, and writing a
// delivery again leaves the stored count unchanged. Concurrent writes of
// one id are serialised.
type Writer struct {
	store Store
	names IndexNamer
	locks [lockStripes]sync.Mutex
}

// NewWriter returns a Writer over store.
func NewWriter(store Store, names IndexNamer) *Writer {
	return &Writer{store: store, names: names}
}

// Names returns the index naming in use.
func (w *Writer) Names() IndexNamer { return w.names }

// Write stores every record. A failing record does not stop the others;
// the joined error lists each failure.
func (w *Writer) Write(ctx context.Context, recs []model.Record) (int, error) {
	var (
		written int
		errs    []error
	)
	for _, rec := range recs {
		if err := w.write(ctx, rec); err != nil {
			if errors.Is(err, ErrSerialization) {
				metrics.RecordSerializationFailure()
			}
			errs = append(errs, err)
			continue
		}
		metrics.RecordStoreWrite(string(rec.Kind))
		written++
	}
	return written, errors.Join(errs...)
}

func (w *Writer) write(ctx context.Context, rec model.Record) error {
	doc, err := w.names.Encode(rec)
	if err != nil {
		return err
	}
	counting := rec.Kind == model.KindGeneric || rec.Kind == model.KindLabel
	if !builder.Accumulates(rec.Kind) || (counting && len(rec.Sources) == 0) {
		return w.upsert(ctx, doc)
	}

	mu := w.stripe(doc.Index, doc.ID)
	mu.Lock()
	defer mu.Unlock()

	var counted []model.Source
	if counting {
		if counted, err = w.sources(ctx, doc.Index, doc.ID); err != nil {
			return err
		}
	}

	prev, err := w.get(ctx, doc.Index, doc.ID)
	var merged model.Record
	switch {
	case errors.Is(err, ErrNotFound):
		merged = builder.Recount(rec)
	case err != nil:
		return err
	default:
		stored, err := model.DecodeRecord(prev.Kind, prev.ID, prev.Body)
		if err != nil {
			return fmt.Errorf("%w: stored %s/%s: %w", ErrSerialization, prev.Index, prev.ID, err)
		}
		stored.Sources = counted
		if merged, err = builder.Merge(stored, rec); err != nil {
			return fmt.Errorf("%w: merge %s: %w", ErrSerialization, rec.ID(), err)
		}
		if counting && len(merged.Sources) == len(counted) {
			return nil
		}
	}

	if doc, err = w.names.Encode(merged); err != nil {
		return err
	}
	if err := w.upsert(ctx, doc); err != nil {
		return err
	}
	if !counting {
		return nil
	}
	return w.putSources(ctx, doc, merged.Sources)
}

// sourceLedger is the body of the document listing the deliveries already
// counted into a record.
type sourceLedger struct {
	Sources []model.Source `json:"sources"`
}

const sourcesKind model.RecordKind = "sources"

func (w *Writer) sources(ctx context.Context, index, id string) ([]model.Source, error) {
	doc, err := w.get(ctx, w.names.SourcesIndex(index), id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	var l sourceLedger
	if err := json.Unmarshal(doc.Body, &l); err != nil {
		return nil, fmt.Errorf("%w: sources of %s/%s: %w", ErrSerialization, index, id, err)
	}
	return l.Sources, nil
}

func (w *Writer) putSources(ctx context.Context, rec Document, sources []model.Source) error {
	body, err := json.Marshal(sourceLedger{Sources: sources})
	if err != nil {
		return fmt.Errorf("%w: sources of %s/%s: %w", ErrSerialization, rec.Index, rec.ID, err)
	}
	return w.upsert(ctx, Document{
		Index:      w.names.SourcesIndex(rec.Index),
		ID:         rec.ID,
		Kind:       sourcesKind,
		Repository: rec.Repository,
		Date:       rec.Date,
		Body:       body,
	})
}

// Lookup decodes the stored record for (index, id).
func (w *Writer) Lookup(ctx context.Context, index, id string) (model.Record, error) {
	doc, err := w.get(ctx, index, id)
	if err != nil {
		return model.Record{}, err
	}
	rec, err := model.DecodeRecord(doc.Kind, doc.ID, doc.Body)
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: %s/%s: %w", ErrSerialization, index, id, err)
	}
	return rec, nil
}

// Put stores a pre-encoded document as is.
func (w *Writer) Put(ctx context.Context, doc Document) error {
	return w.upsert(ctx, doc)
}

func (w *Writer) get(ctx context.Context, index, id string) (Document, error) {
	start := time.Now()
	doc, err := w.store.Get(ctx, index, id)
	metrics.RecordStoreLatency("get", float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError("get")
	}
	return doc, err
}

func (w *Writer) upsert(ctx context.Context, doc Document) error {
	start := time.Now()
	err := w.store.Upsert(ctx, doc)
	metrics.RecordStoreLatency("upsert", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordStoreError("upsert")
	}
	return err
}

func (w *Writer) stripe(index, id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(index))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(id))
	return &w.locks[h.Sum32()%lockStripes]
}
