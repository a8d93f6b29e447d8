package embedder

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedEmbedder wraps an Embedder with an in-memory read-through cache.
// Sub-task instructions repeat across prompts, so caching avoids redundant
// round trips to the embedding service.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache[string, []float32]
}

// NewCachedEmbedder creates a caching decorator around inner. maxBytes
// bounds the approximate memory spent on cached vectors.
func NewCachedEmbedder(inner Embedder, maxBytes int64) (*CachedEmbedder, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns a cached vector when one exists for the exact text,
// otherwise delegates to the wrapped embedder and caches the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.cache.Get(text); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// 4 bytes per float32 approximates the vector's memory cost.
	c.cache.Set(text, vec, int64(len(vec)*4))
	c.cache.Wait()

	return vec, nil
}

// Dimension returns the dimensionality of the wrapped embedder.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Close releases the cache's resources.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}

var _ Embedder = (*CachedEmbedder)(nil)
