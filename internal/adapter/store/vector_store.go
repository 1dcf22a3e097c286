package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"docrag/internal/domain"
)

var (
	bucketRecords = []byte("records")
	keySchema     = []byte("schema")
)

// BoltVectorStore implements VectorStore using BoltDB for persistence.
// Each collection is a top-level bucket holding a records sub-bucket and the
// schema key. Uses brute-force search over an in-memory copy of the vectors.
//
// bbolt holds an exclusive file lock while open, so only one process can use
// a store file at a time.
type BoltVectorStore struct {
	db         *bbolt.DB
	collection []byte
	mu         sync.RWMutex
	schema     SchemaInfo
	// In-memory cache for fast search
	records map[string]storedRecord
}

type storedRecord struct {
	Text   string    `json:"t"`
	Vector []float32 `json:"v"`
}

// NewBoltVectorStore opens (or creates) the bolt file at path and the named
// collection inside it.
func NewBoltVectorStore(path string, opts Options) (*BoltVectorStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, boltErr("open", fmt.Errorf("failed to open bolt db: %w", err))
	}

	store, err := newBoltVectorStore(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func newBoltVectorStore(db *bbolt.DB, opts Options) (*BoltVectorStore, error) {
	if opts.Collection == "" {
		opts.Collection = "documents"
	}

	store := &BoltVectorStore{
		db:         db,
		collection: []byte(opts.Collection),
		records:    make(map[string]storedRecord),
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		coll, err := tx.CreateBucketIfNotExists(store.collection)
		if err != nil {
			return fmt.Errorf("failed to create collection bucket: %w", err)
		}
		if _, err := coll.CreateBucketIfNotExists(bucketRecords); err != nil {
			return fmt.Errorf("failed to create records bucket: %w", err)
		}

		var stored SchemaInfo
		if data := coll.Get(keySchema); data != nil {
			if err := json.Unmarshal(data, &stored); err != nil {
				return fmt.Errorf("corrupted schema info: %w", err)
			}
		}

		merged, err := reconcile(stored, opts)
		if err != nil {
			return err
		}
		store.schema = merged
		return putSchema(coll, merged)
	})
	if err != nil {
		return nil, boltErr("open", err)
	}

	// Load existing records into memory
	if err := store.loadRecords(); err != nil {
		return nil, boltErr("load", err)
	}

	return store, nil
}

func putSchema(coll *bbolt.Bucket, info SchemaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return coll.Put(keySchema, data)
}

// loadRecords loads all records from BoltDB into memory.
func (s *BoltVectorStore) loadRecords() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := s.recordsBucket(tx)
		return b.ForEach(func(k, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupted record %q: %w", k, err)
			}
			s.records[string(k)] = rec
			return nil
		})
	})
}

func (s *BoltVectorStore) recordsBucket(tx *bbolt.Tx) *bbolt.Bucket {
	return tx.Bucket(s.collection).Bucket(bucketRecords)
}

// Put writes the record in a single bolt transaction. The cache is updated
// under the same lock, so queries never see a partial record.
func (s *BoltVectorStore) Put(ctx context.Context, id, text string, embedding []float32) error {
	if id == "" {
		return boltErr("put", domain.ErrEmptyID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkDimension(s.schema.Dimension, len(embedding)); err != nil {
		return boltErr("put", err)
	}

	rec := storedRecord{Text: text, Vector: append([]float32(nil), embedding...)}
	data, err := json.Marshal(rec)
	if err != nil {
		return boltErr("put", err)
	}

	adoptDimension := s.schema.Dimension == 0
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if adoptDimension {
			info := s.schema
			info.Dimension = len(embedding)
			if err := putSchema(tx.Bucket(s.collection), info); err != nil {
				return err
			}
		}
		return s.recordsBucket(tx).Put([]byte(id), data)
	})
	if err != nil {
		return boltErr("put", err)
	}

	if adoptDimension {
		s.schema.Dimension = len(embedding)
	}
	s.records[id] = rec
	return nil
}

// Query finds the k nearest records using cosine distance.
func (s *BoltVectorStore) Query(ctx context.Context, embedding []float32, k int) (domain.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return domain.QueryResult{}, nil
	}
	if err := checkDimension(s.schema.Dimension, len(embedding)); err != nil {
		return nil, boltErr("query", err)
	}

	candidates := make([]Candidate, 0, len(s.records))
	for id, rec := range s.records {
		candidates = append(candidates, Candidate{ID: id, Text: rec.Text, Vector: rec.Vector})
	}
	return RankNearest(embedding, candidates, k), nil
}

// Count returns the number of records in the collection.
func (s *BoltVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *BoltVectorStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

// Get returns a stored record.
func (s *BoltVectorStore) Get(ctx context.Context, id string) (domain.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.Record{}, false, nil
	}
	return domain.Record{ID: id, Text: rec.Text, Embedding: rec.Vector}, true, nil
}

func (s *BoltVectorStore) Info(ctx context.Context) (domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CollectionInfo{
		Backend:   "bolt",
		Name:      string(s.collection),
		Count:     len(s.records),
		Model:     s.schema.Model,
		Dimension: s.schema.Dimension,
	}, nil
}

func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}

func boltErr(op string, err error) error {
	return &domain.StorageError{Backend: "bolt", Op: op, Err: err}
}
