// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package embedding

import "context"

// Compile-time check that CachedEmbedder implements Embedder.
var _ Embedder = (*CachedEmbedder)(nil)

// CachedEmbedder wraps an Embedder with cache-aside lookups. A cache miss
// calls through and stores the result; cache failures never surface.
type CachedEmbedder struct {
	embedder Embedder
	cache    *Cache
}

// NewCachedEmbedder creates the cache-aside decorator.
func NewCachedEmbedder(embedder Embedder, cache *Cache) *CachedEmbedder {
	return &CachedEmbedder{embedder: embedder, cache: cache}
}

func (c *CachedEmbedder) Model() string { return c.embedder.Model() }

func (c *CachedEmbedder) Dimension() int { return c.embedder.Dimension() }

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := c.cache.Get(ctx, text); ok {
		return vector, nil
	}

	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, text, vector)
	return vector, nil
}
