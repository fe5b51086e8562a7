// Package dedupe remembers webhook delivery ids so redeliveries are dropped.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 100_000

// Deduper records seen delivery ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded and records it
	// if not. The check and the write are atomic. Empty ids are never
	// recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a delivery that could not be queued can be
	// retried by the sender.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps the most recent maxSize ids in a ring. The oldest
// id is evicted first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	maxSize int
	ring    []string
	next    int
	seen    map[string]int // id -> ring slot
}

// NewInMemoryDeduper returns a bounded FIFO deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.ring = make([]string, d.maxSize)
	d.seen = make(map[string]int, d.maxSize)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if old := d.ring[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.ring[d.next] = id
	d.seen[id] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if slot, ok := d.seen[id]; ok {
		delete(d.seen, id)
		d.ring[slot] = ""
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
