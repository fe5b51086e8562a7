package repository

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	indices map[string]map[string]Document
	closed  bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indices: make(map[string]map[string]Document)}
}

// Upsert validates every document before writing any of them.
func (s *MemoryStore) Upsert(_ context.Context, docs ...Document) error {
	for _, d := range docs {
		if err := d.validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, d := range docs {
		idx, ok := s.indices[d.Index]
		if !ok {
			idx = make(map[string]Document)
			s.indices[d.Index] = idx
		}
		d.Body = append([]byte(nil), d.Body...)
		idx[d.ID] = d
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, index, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Document{}, ErrClosed
	}
	d, ok := s.indices[index][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	d.Body = append([]byte(nil), d.Body...)
	return d, nil
}

func (s *MemoryStore) Count(_ context.Context, index string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.indices[index]), nil
}

// Close drops all documents. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.indices = nil
	return nil
}
