// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long cached vectors live before expiring.
const DefaultCacheTTL = 7 * 24 * time.Hour

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Errors int64 `json:"errors"`
}

// Cache is a content-and-model-addressed vector cache backed by Redis.
//
// Keys embed a hash of the embedding model name, so two models never share
// entries for the same text: their vectors live in incompatible spaces.
// Every operation degrades gracefully when the backend is unreachable —
// reads become misses and writes become no-ops — and increments the
// corresponding counter instead of failing the caller.
type Cache struct {
	client redis.UniversalClient
	prefix string
	model  string
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errors atomic.Int64
}

// NewCache creates a Cache scoped to the given embedding model.
func NewCache(client redis.UniversalClient, prefix, model string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "recall:emb:"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		client: client,
		prefix: prefix,
		model:  model,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// key builds the model-scoped cache key:
// prefix + "m" + sha256(model)[:16] + ":" + sha256(text).
func (c *Cache) key(text string) string {
	return c.prefix + "m" + hashHex(c.model)[:16] + ":" + hashHex(text)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text, or (nil, false) on a miss.
// Backend errors are counted and reported as misses.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.errors.Add(1)
			c.logger.Debug("embedding cache get failed", "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return vector, true
}

// Set stores a vector for text. Backend errors are counted and swallowed.
func (c *Cache) Set(ctx context.Context, text string, vector []float32) {
	raw, err := json.Marshal(vector)
	if err != nil {
		c.errors.Add(1)
		return
	}
	if err := c.client.Set(ctx, c.key(text), raw, c.ttl).Err(); err != nil {
		c.errors.Add(1)
		c.logger.Debug("embedding cache set failed", "error", err)
		return
	}
	c.sets.Add(1)
}

// GetBatch returns cached vectors keyed by input index; absent entries are
// misses.
func (c *Cache) GetBatch(ctx context.Context, texts []string) map[int][]float32 {
	if len(texts) == 0 {
		return nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.errors.Add(1)
		c.misses.Add(int64(len(texts)))
		return nil
	}

	found := make(map[int][]float32, len(texts))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			c.misses.Add(1)
			continue
		}
		var vector []float32
		if err := json.Unmarshal([]byte(raw), &vector); err != nil {
			c.errors.Add(1)
			c.misses.Add(1)
			continue
		}
		c.hits.Add(1)
		found[i] = vector
	}
	return found
}

// SetBatch stores vectors for the given texts pairwise.
func (c *Cache) SetBatch(ctx context.Context, texts []string, vectors [][]float32) {
	n := len(texts)
	if len(vectors) < n {
		n = len(vectors)
	}

	pipe := c.client.Pipeline()
	var queued int64
	for i := 0; i < n; i++ {
		raw, err := json.Marshal(vectors[i])
		if err != nil {
			c.errors.Add(1)
			continue
		}
		pipe.Set(ctx, c.key(texts[i]), raw, c.ttl)
		queued++
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.errors.Add(1)
		c.logger.Debug("embedding cache batch set failed", "error", err)
		return
	}
	c.sets.Add(queued)
}

// Delete removes the entry for text.
func (c *Cache) Delete(ctx context.Context, text string) {
	if err := c.client.Del(ctx, c.key(text)).Err(); err != nil {
		c.errors.Add(1)
	}
}

// ClearAll removes every entry under the cache prefix, regardless of model.
func (c *Cache) ClearAll(ctx context.Context) int64 {
	return c.deleteMatching(ctx, func(string) bool { return true })
}

// Size returns the number of entries currently stored under this model's
// scope, or 0 when the backend is unreachable.
func (c *Cache) Size(ctx context.Context) int64 {
	modelPrefix := c.prefix + "m" + hashHex(c.model)[:16] + ":"
	var count int64
	iter := c.client.Scan(ctx, 0, modelPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		c.errors.Add(1)
		return 0
	}
	return count
}

// Stats returns counter values accumulated since creation.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Errors: c.errors.Load(),
	}
}

// MigrateLegacyKeys deletes entries written before model scoping existed,
// recognizable by the missing "m<hash>:" segment after the prefix. Their
// vectors belong to an unknown embedding space and must not be served.
// Returns the number of deleted keys.
func (c *Cache) MigrateLegacyKeys(ctx context.Context) int64 {
	deleted := c.deleteMatching(ctx, func(key string) bool {
		rest := strings.TrimPrefix(key, c.prefix)
		return !isModelScoped(rest)
	})
	if deleted > 0 {
		c.logger.Info("removed legacy embedding cache entries", "count", deleted)
	}
	return deleted
}

// isModelScoped reports whether a key suffix carries the "m<16 hex>:" model
// segment.
func isModelScoped(rest string) bool {
	if len(rest) < 18 || rest[0] != 'm' || rest[17] != ':' {
		return false
	}
	_, err := hex.DecodeString(rest[1:17])
	return err == nil
}

// deleteMatching scans the prefix space and deletes keys accepted by match.
func (c *Cache) deleteMatching(ctx context.Context, match func(string) bool) int64 {
	var deleted int64
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		key := iter.Val()
		if !match(key) {
			continue
		}
		batch = append(batch, key)
		if len(batch) >= 500 {
			deleted += c.deleteKeys(ctx, batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.errors.Add(1)
		return deleted
	}
	if len(batch) > 0 {
		deleted += c.deleteKeys(ctx, batch)
	}
	return deleted
}

func (c *Cache) deleteKeys(ctx context.Context, keys []string) int64 {
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.errors.Add(1)
		return 0
	}
	return n
}
