// Package embedder holds Embedder decorators shared by every backend.
// Concrete embedders live in sub-packages (hash, openai).
package embedder

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/ristretto"

	"github.com/hupe1980/recallmesh/memory"
)

// DefaultCacheSize is the number of embeddings retained by NewCached.
const DefaultCacheSize = 4096

// Compile-time assertion
var _ memory.Embedder = (*CachedEmbedder)(nil)

// CachedEmbedder memoizes embeddings by exact text. Every memory search embeds
// the latest user message once for recall and often again when the model
// issues search_memories with a similar query, so repeated texts are common.
type CachedEmbedder struct {
	next  memory.Embedder
	cache *ristretto.Cache
}

// CacheOptions configures a CachedEmbedder.
type CacheOptions struct {
	// MaxEntries bounds the number of cached vectors.
	MaxEntries int64
}

// NewCached wraps next with a bounded admission cache.
func NewCached(next memory.Embedder, optFns ...func(o *CacheOptions)) (*CachedEmbedder, error) {
	opts := CacheOptions{MaxEntries: DefaultCacheSize}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultCacheSize
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.MaxEntries * 10,
		MaxCost:     opts.MaxEntries,
		BufferItems: 64,
		// Entries are counted, not sized.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	return &CachedEmbedder{next: next, cache: cache}, nil
}

// Embed returns the cached vector for text or computes and caches it.
// Callers receive a copy and may modify it freely.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return slices.Clone(vec), nil
		}
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, slices.Clone(vec), 1)

	return vec, nil
}

// Dimensions delegates to the wrapped embedder.
func (c *CachedEmbedder) Dimensions() int { return c.next.Dimensions() }

// Wait blocks until pending cache writes are applied.
func (c *CachedEmbedder) Wait() { c.cache.Wait() }

// Close releases the cache's background goroutines.
func (c *CachedEmbedder) Close() error {
	c.cache.Close()
	return nil
}
