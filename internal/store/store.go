// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package store

import (
	"context"
	"time"
)

// SolutionStore manages the relational side of the knowledge base.
// Delete operations return the number of rows removed so the garbage
// collector can report per-phase counts.
type SolutionStore interface {
	Insert(ctx context.Context, s *Solution) error
	Get(ctx context.Context, id string) (*Solution, error)
	Count(ctx context.Context) (int64, error)
	ListIDs(ctx context.Context) ([]string, error)

	// SearchKeyword performs lexical full-text search over query and
	// solution text, returning scored results best-first.
	SearchKeyword(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// DeleteExpired removes solutions older than cutoff whose value score
	// is below minScore. Both conditions must hold.
	DeleteExpired(ctx context.Context, cutoff time.Time, minScore float64) (int64, error)

	// ValueScoreAtRank returns the value score of the solution at the
	// given zero-based rank when sorted by value score descending.
	ValueScoreAtRank(ctx context.Context, rank int64) (float64, error)

	// DeleteBelowScore removes every solution with value score strictly
	// below threshold.
	DeleteBelowScore(ctx context.Context, threshold float64) (int64, error)

	// Recent returns the n most recently created solutions.
	Recent(ctx context.Context, n int) ([]*Solution, error)

	DeleteByIDs(ctx context.Context, ids []string) (int64, error)

	// Stats refreshes and returns storage size metrics.
	Stats(ctx context.Context) (StorageStats, error)

	Close() error
}

// VectorStore manages embedding storage and similarity search over a
// named collection. Implementations are external services (or embedded
// engines) assumed to be internally consistent; this core only requires
// that individual operations are atomic.
type VectorStore interface {
	Store(ctx context.Context, id string, embedding []float32, metadata map[string]any) error
	Search(ctx context.Context, query []float32, k int, scoreThreshold float64) ([]VectorResult, error)

	// ScrollIDs enumerates every identifier present in the collection.
	ScrollIDs(ctx context.Context) ([]string, error)

	Delete(ctx context.Context, ids []string) error
	Close() error
}
