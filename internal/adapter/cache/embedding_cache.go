package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/sync/singleflight"

	"docrag/internal/port"
)

// CachedEmbedder memoizes embeddings by text for the lifetime of one
// ingestion run. Concurrent requests for the same text share one provider
// call. Failures are not cached.
type CachedEmbedder struct {
	embedder port.Embedder
	group    singleflight.Group

	mu      sync.RWMutex
	entries map[string][]float32
}

func NewCachedEmbedder(embedder port.Embedder) *CachedEmbedder {
	return &CachedEmbedder{
		embedder: embedder,
		entries:  make(map[string][]float32),
	}
}

func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:16])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	c.mu.RLock()
	vec, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		vec, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return vec, nil
		}

		vec, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = vec
		c.mu.Unlock()
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (c *CachedEmbedder) Dimension() int {
	return c.embedder.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.embedder.ModelName()
}

// Size returns the number of distinct texts embedded so far.
func (c *CachedEmbedder) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
