// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package store

import "time"

// Solution is a stored solved-issue/pattern record, the unit managed by
// garbage collection. Solutions are immutable after write; only the
// garbage collector deletes them.
type Solution struct {
	ID         string
	QueryText  string
	Solution   string
	ValueScore float64 // 0..1
	CreatedAt  time.Time
}

// SearchResult is one retrieved unit of knowledge: produced by retrieval,
// consumed by compression. Not persisted by this core.
type SearchResult struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Score      float64        `json:"score"`
	Text       string         `json:"text"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// VectorResult is a scored hit from the vector store.
type VectorResult struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// StorageStats is a snapshot of solution-store size metrics.
type StorageStats struct {
	Count      int64
	AvgValue   float64
	OldestAt   time.Time
	NewestAt   time.Time
	SizeBytes  int64
	MaxEntries int
}

// Utilization returns Count / MaxEntries, or 0 when unbounded.
func (s StorageStats) Utilization() float64 {
	if s.MaxEntries <= 0 {
		return 0
	}
	return float64(s.Count) / float64(s.MaxEntries)
}
