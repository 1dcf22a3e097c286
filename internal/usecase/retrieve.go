package usecase

import (
	"context"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// DefaultTopK is the number of documents returned per query.
const DefaultTopK = 3

// RetrieveUseCase embeds a query and returns the nearest stored documents.
type RetrieveUseCase struct {
	embedder port.Embedder
	store    port.VectorStore
	topK     int
	timeout  time.Duration
}

// NewRetrieveUseCase creates a retrieve use case. A zero timeout leaves the
// caller's context deadline in charge.
func NewRetrieveUseCase(embedder port.Embedder, store port.VectorStore, topK int, timeout time.Duration) *RetrieveUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RetrieveUseCase{
		embedder: embedder,
		store:    store,
		topK:     topK,
		timeout:  timeout,
	}
}

// TopK returns the number of results each query asks the store for.
func (u *RetrieveUseCase) TopK() int {
	return u.topK
}

// Retrieve returns the store result unchanged. Embedding and store errors are
// returned as is.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string) (domain.QueryResult, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	embedding, err := u.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return u.store.Query(ctx, embedding, u.topK)
}
