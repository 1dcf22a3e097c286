package memstore

import (
	"context"
	"fmt"
	"sync"

	"docrag/internal/adapter/store"
	"docrag/internal/domain"
)

// MemoryStore is a non-durable VectorStore for tests and one-shot runs.
type MemoryStore struct {
	mu        sync.RWMutex
	name      string
	dimension int
	records   map[string]domain.Record
}

// NewMemoryStore returns an empty store for the named collection. Nothing is
// written to disk, so records are lost when the process exits.
func NewMemoryStore(collection string) *MemoryStore {
	if collection == "" {
		collection = "documents"
	}
	return &MemoryStore{
		name:    collection,
		records: make(map[string]domain.Record),
	}
}

func (s *MemoryStore) Put(ctx context.Context, id, text string, embedding []float32) error {
	if id == "" {
		return memErr("put", domain.ErrEmptyID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(embedding) == 0 || (s.dimension > 0 && len(embedding) != s.dimension) {
		return memErr("put", fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(embedding)))
	}
	s.dimension = len(embedding)
	s.records[id] = domain.Record{
		ID:        id,
		Text:      text,
		Embedding: append([]float32(nil), embedding...),
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, embedding []float32, k int) (domain.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return domain.QueryResult{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, memErr("query", fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(embedding)))
	}

	candidates := make([]store.Candidate, 0, len(s.records))
	for _, rec := range s.records {
		candidates = append(candidates, store.Candidate{ID: rec.ID, Text: rec.Text, Vector: rec.Embedding})
	}
	return store.RankNearest(embedding, candidates, k), nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok, nil
}

func (s *MemoryStore) Info(ctx context.Context) (domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CollectionInfo{
		Backend:   "memory",
		Name:      s.name,
		Count:     len(s.records),
		Dimension: s.dimension,
	}, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func memErr(op string, err error) error {
	return &domain.StorageError{Backend: "memory", Op: op, Err: err}
}
