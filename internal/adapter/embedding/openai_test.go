package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func newTestEmbedder(t *testing.T, url string, retries int) *OpenAIEmbedder {
	t.Helper()
	e, err := New(Options{
		Provider:   "openai",
		APIKey:     "sk-test",
		Model:      "test-model",
		BaseURL:    url,
		Dimension:  3,
		MaxRetries: retries,
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)
	e.backoff = time.Millisecond
	return e
}

func writeEmbedding(w http.ResponseWriter, vec []float32) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(embeddingResponse{
		Data: []embeddingData{{Embedding: vec, Index: 0}},
	})
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, []string{"apple pie recipe"}, req.Input)

		writeEmbedding(w, []float32{0.1, 0.2, 0.3})
	}))
	defer ts.Close()

	e := newTestEmbedder(t, ts.URL, 0)
	vec, err := e.Embed(context.Background(), "apple pie recipe")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "test-model", e.ModelName())
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    domain.ProviderErrorKind
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
			},
			kind: domain.ProviderAuth,
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			kind: domain.ProviderMalformed,
		},
		{
			name: "wrong dimension",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEmbedding(w, []float32{1, 2})
			},
			kind: domain.ProviderMalformed,
		},
		{
			name: "missing data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":[]}`))
			},
			kind: domain.ProviderMalformed,
		},
		{
			name: "api error payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error":{"message":"input too long","type":"invalid_request_error"}}`))
			},
			kind: domain.ProviderRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			e := newTestEmbedder(t, ts.URL, 2)
			_, err := e.Embed(context.Background(), "text")
			require.Error(t, err)

			var pe *domain.ProviderError
			require.True(t, errors.As(err, &pe), "expected ProviderError, got %v", err)
			assert.Equal(t, tt.kind, pe.Kind)
		})
	}
}

func TestOpenAIEmbedder_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeEmbedding(w, []float32{1, 0, 0})
	}))
	defer ts.Close()

	e := newTestEmbedder(t, ts.URL, 3)
	vec, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIEmbedder_NoRetryOnAuth(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer ts.Close()

	e := newTestEmbedder(t, ts.URL, 3)
	_, err := e.Embed(context.Background(), "text")
	require.True(t, domain.IsProviderError(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIEmbedder_Unreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	e := newTestEmbedder(t, url, 0)
	_, err := e.Embed(context.Background(), "text")

	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.ProviderNetwork, pe.Kind)
}

func TestOpenAIEmbedder_UnknownModelAdoptsDimension(t *testing.T) {
	var size atomic.Int32
	size.Store(1024)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEmbedding(w, make([]float32, size.Load()))
	}))
	defer ts.Close()

	e, err := NewOllamaEmbedder("bge-m3", ts.URL)
	require.NoError(t, err)
	e.backoff = time.Millisecond
	assert.Equal(t, 0, e.Dimension())

	vec, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, vec, 1024)
	assert.Equal(t, 1024, e.Dimension())

	// Once adopted, the size is enforced like a configured one.
	size.Store(512)
	_, err = e.Embed(context.Background(), "text")
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.ProviderMalformed, pe.Kind)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestModelDimension(t *testing.T) {
	assert.Equal(t, 1536, modelDimension("text-embedding-3-small"))
	assert.Equal(t, 768, modelDimension("nomic-embed-text"))
	assert.Equal(t, 0, modelDimension("bge-m3"))
}

func TestNew_MissingKey(t *testing.T) {
	_, err := New(Options{Model: "text-embedding-3-small"})
	assert.True(t, domain.IsConfigurationError(err))
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Apple pie recipe")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "apple PIE recipe!")
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "embedding should ignore case and punctuation")

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 64)
	assert.Equal(t, "hash", e.ModelName())
}
