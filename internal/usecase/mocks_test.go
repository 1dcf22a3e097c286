package usecase

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"docrag/internal/domain"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	vec, _ := args.Get(0).([]float32)
	return vec, args.Error(1)
}

func (m *MockEmbedder) Dimension() int    { return 2 }
func (m *MockEmbedder) ModelName() string { return "mock" }

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorStore) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockVectorStore) Put(ctx context.Context, id, text string, embedding []float32) error {
	args := m.Called(ctx, id, text, embedding)
	return args.Error(0)
}

func (m *MockVectorStore) Query(ctx context.Context, embedding []float32, k int) (domain.QueryResult, error) {
	args := m.Called(ctx, embedding, k)
	result, _ := args.Get(0).(domain.QueryResult)
	return result, args.Error(1)
}

func (m *MockVectorStore) Info(ctx context.Context) (domain.CollectionInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.CollectionInfo), args.Error(1)
}

func (m *MockVectorStore) Close() error {
	return m.Called().Error(0)
}

// tableEmbedder returns fixed vectors per text and counts calls.
type tableEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   map[string]int
	err     error
}

func newTableEmbedder(vectors map[string][]float32) *tableEmbedder {
	return &tableEmbedder{vectors: vectors, calls: make(map[string]int)}
}

func (e *tableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[text]++
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *tableEmbedder) Dimension() int    { return 3 }
func (e *tableEmbedder) ModelName() string { return "table" }

func (e *tableEmbedder) totalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}
