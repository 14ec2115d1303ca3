// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

// Package gc bounds the knowledge store and reconciles it against the
// vector store. Solutions are immutable after write; this package is the
// only component that deletes them.
package gc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/recall-dev/recall/internal/store"
	"github.com/recall-dev/recall/internal/telemetry"
	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// dedupeWindow bounds how many recent solutions the dedupe phase
// examines per cycle.
const dedupeWindow = 10000

// defaultOrphanBatch is the fixed batch size for orphan vector deletes.
const defaultOrphanBatch = 100

// Config bounds the knowledge store. Set at startup, immutable during a
// run.
type Config struct {
	MaxSolutions  int
	MaxAgeDays    int
	MinValueScore float64

	// DedupeSimilarity is accepted for configuration compatibility but
	// unused: deduplication matches exact normalized query text only.
	DedupeSimilarity float64

	OrphanBatchSize int
}

func (c Config) withDefaults() Config {
	if c.MaxSolutions <= 0 {
		c.MaxSolutions = 10000
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 90
	}
	if c.MinValueScore <= 0 {
		c.MinValueScore = 0.3
	}
	if c.OrphanBatchSize <= 0 {
		c.OrphanBatchSize = defaultOrphanBatch
	}
	return c
}

// Report counts what one full cycle removed.
type Report struct {
	Expired    int64 `json:"expired"`
	Pruned     int64 `json:"pruned"`
	Duplicates int64 `json:"duplicates"`
	Orphans    int64 `json:"orphans"`
}

// Collector runs garbage-collection cycles over the two stores.
type Collector struct {
	solutions store.SolutionStore
	vectors   store.VectorStore
	sink      telemetry.Sink
	cfg       Config
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// New creates a Collector. sink may be nil.
func New(solutions store.SolutionStore, vectors store.VectorStore, sink telemetry.Sink, cfg Config) *Collector {
	if sink == nil {
		sink = telemetry.Noop{}
	}
	return &Collector{
		solutions: solutions,
		vectors:   vectors,
		sink:      sink,
		cfg:       cfg.withDefaults(),
		logger:    slog.Default(),
		nowFunc:   time.Now,
	}
}

// SetNowFunc overrides the clock. Tests only.
func (c *Collector) SetNowFunc(f func() time.Time) { c.nowFunc = f }

// RunFullGC runs the four phases strictly in sequence: expiration,
// pruning, deduplication, orphan vector cleanup. A phase error aborts
// the remaining phases and propagates; the next scheduled run starts
// fresh.
func (c *Collector) RunFullGC(ctx context.Context) (*Report, error) {
	report := &Report{}
	var err error

	if report.Expired, err = c.expire(ctx); err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeGCPhaseFailure, "expiration phase failed")
	}
	if report.Pruned, err = c.prune(ctx); err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeGCPhaseFailure, "pruning phase failed")
	}
	if report.Duplicates, err = c.dedupe(ctx); err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeGCPhaseFailure, "dedupe phase failed")
	}
	if report.Orphans, err = c.cleanOrphans(ctx); err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeGCPhaseFailure, "orphan cleanup phase failed")
	}

	stats, err := c.solutions.Stats(ctx)
	if err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeGCPhaseFailure, "storage stats refresh failed")
	}

	c.logger.Info("gc cycle complete",
		"expired", report.Expired,
		"pruned", report.Pruned,
		"duplicates", report.Duplicates,
		"orphans", report.Orphans,
		"remaining", stats.Count)
	c.sink.Record(telemetry.EventGCCycle, map[string]any{
		"expired":    report.Expired,
		"pruned":     report.Pruned,
		"duplicates": report.Duplicates,
		"orphans":    report.Orphans,
		"remaining":  stats.Count,
	})
	return report, nil
}

// expire deletes solutions that are BOTH older than MaxAgeDays and below
// MinValueScore. Age alone never expires a high-value solution.
func (c *Collector) expire(ctx context.Context) (int64, error) {
	cutoff := c.nowFunc().AddDate(0, 0, -c.cfg.MaxAgeDays)
	return c.solutions.DeleteExpired(ctx, cutoff, c.cfg.MinValueScore)
}

// prune keeps the top 80% by value score when the store is over
// capacity. The threshold is the score at rank 0.8*MaxSolutions sorted
// descending; everything strictly below it is deleted.
func (c *Collector) prune(ctx context.Context) (int64, error) {
	count, err := c.solutions.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count <= int64(c.cfg.MaxSolutions) {
		return 0, nil
	}

	rank := int64(float64(c.cfg.MaxSolutions) * 0.8)
	threshold, err := c.solutions.ValueScoreAtRank(ctx, rank)
	if err != nil {
		return 0, err
	}
	return c.solutions.DeleteBelowScore(ctx, threshold)
}

// dedupe groups the newest dedupeWindow solutions by exact normalized
// query text and keeps only the highest-valued solution per group. This
// is lexical deduplication; the configured similarity threshold is
// carried but unused.
func (c *Collector) dedupe(ctx context.Context) (int64, error) {
	recent, err := c.solutions.Recent(ctx, dedupeWindow)
	if err != nil {
		return 0, err
	}

	type keeper struct {
		id    string
		score float64
	}
	groups := make(map[string]*keeper)
	var toDelete []string
	for _, s := range recent {
		key := strings.ToLower(strings.TrimSpace(s.QueryText))
		if key == "" {
			continue
		}
		k, ok := groups[key]
		if !ok {
			groups[key] = &keeper{id: s.ID, score: s.ValueScore}
			continue
		}
		if s.ValueScore > k.score {
			toDelete = append(toDelete, k.id)
			k.id, k.score = s.ID, s.ValueScore
		} else {
			toDelete = append(toDelete, s.ID)
		}
	}

	if len(toDelete) == 0 {
		return 0, nil
	}
	return c.solutions.DeleteByIDs(ctx, toDelete)
}

// cleanOrphans deletes vectors that have no corresponding solution,
// restoring the cross-store invariant. Deletes run in fixed-size
// batches; a batch failure logs and reports 0 for the whole invocation
// rather than a partial count.
func (c *Collector) cleanOrphans(ctx context.Context) (int64, error) {
	vectorIDs, err := c.vectors.ScrollIDs(ctx)
	if err != nil {
		return 0, err
	}
	solutionIDs, err := c.solutions.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	known := make(map[string]bool, len(solutionIDs))
	for _, id := range solutionIDs {
		known[id] = true
	}
	var orphans []string
	for _, id := range vectorIDs {
		if !known[id] {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	for start := 0; start < len(orphans); start += c.cfg.OrphanBatchSize {
		end := min(start+c.cfg.OrphanBatchSize, len(orphans))
		if err := c.vectors.Delete(ctx, orphans[start:end]); err != nil {
			c.logger.Warn("orphan vector batch delete failed, reporting zero for this cycle",
				"batch_start", start, "error", err)
			return 0, nil
		}
	}
	return int64(len(orphans)), nil
}

// Statistics returns a storage snapshot without running a cycle.
func (c *Collector) Statistics(ctx context.Context) (store.StorageStats, error) {
	stats, err := c.solutions.Stats(ctx)
	if err != nil {
		return store.StorageStats{}, err
	}
	stats.MaxEntries = c.cfg.MaxSolutions
	return stats, nil
}
