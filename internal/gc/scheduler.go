// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package gc

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval between scheduled cycles.
const DefaultInterval = time.Hour

// Scheduler periodically runs full GC cycles. A single cycle's failure
// is logged and swallowed; only context cancellation stops the loop.
type Scheduler struct {
	collector *Collector
	interval  time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler. interval <= 0 uses DefaultInterval.
func NewScheduler(collector *Collector, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		collector: collector,
		interval:  interval,
		logger:    slog.Default(),
	}
}

// Run blocks until ctx is canceled, running one cycle per interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("gc scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("gc scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.collector.RunFullGC(ctx); err != nil {
				s.logger.Error("gc cycle failed", "error", err)
			}
		}
	}
}
