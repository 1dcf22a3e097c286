package port

import (
	"context"

	"docrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding of a single text. One provider round-trip per call.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore persists document records for a single collection and answers
// nearest-neighbour queries.
type VectorStore interface {
	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// Exists reports whether a record with the given id is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// Put inserts or overwrites the record for id. A reader never observes
	// the vector without the text or vice versa.
	Put(ctx context.Context, id, text string, embedding []float32) error

	// Query returns up to k records ordered by ascending cosine distance.
	// An empty collection yields an empty result and no error.
	Query(ctx context.Context, embedding []float32, k int) (domain.QueryResult, error)

	// Info describes the backing collection.
	Info(ctx context.Context) (domain.CollectionInfo, error)

	Close() error
}

// RecordReader is implemented by stores that can return a stored record.
// Ingestion uses it to skip documents whose text has not changed.
type RecordReader interface {
	Get(ctx context.Context, id string) (domain.Record, bool, error)
}
