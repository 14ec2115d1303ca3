// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

// Package telemetry records fire-and-forget events. Producers never block:
// events flow through a bounded queue drained by a single background
// goroutine, and a full queue drops the event and counts the drop.
package telemetry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Event types emitted by the engine.
const (
	EventQuery        = "query"
	EventKnowledgeGap = "knowledge_gap"
	EventGCCycle      = "gc_cycle"
)

// DefaultQueueSize bounds the in-flight event queue.
const DefaultQueueSize = 256

// Event is one recorded occurrence.
type Event struct {
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Sink accepts events. Record must never block and must never fail the
// caller.
type Sink interface {
	Record(eventType string, payload map[string]any)
	Close() error
}

// Writer persists events drained from the queue.
type Writer interface {
	Write(ev Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

var _ Sink = (*Noop)(nil)

func (Noop) Record(string, map[string]any) {}
func (Noop) Close() error                  { return nil }

// Queue is a bounded-queue Sink drained by one background goroutine.
type Queue struct {
	events  chan Event
	writer  Writer
	logger  *slog.Logger
	dropped atomic.Int64

	// mu guards closed and the send on events so a Record racing Close
	// drops the event instead of hitting a closed channel.
	mu     sync.RWMutex
	closed bool

	nowFunc   func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

var _ Sink = (*Queue)(nil)

// NewQueue starts the consumer goroutine. size <= 0 uses
// DefaultQueueSize.
func NewQueue(writer Writer, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		events:  make(chan Event, size),
		writer:  writer,
		logger:  slog.Default(),
		nowFunc: time.Now,
		done:    make(chan struct{}),
	}
	go q.drain()
	return q
}

// SetNowFunc overrides the clock. Tests only.
func (q *Queue) SetNowFunc(f func() time.Time) { q.nowFunc = f }

// Record enqueues an event without blocking. When the queue is full, or
// the queue has been closed, the event is dropped and counted.
func (q *Queue) Record(eventType string, payload map[string]any) {
	ev := Event{Type: eventType, At: q.nowFunc(), Payload: payload}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return
	}
	select {
	case q.events <- ev:
	default:
		q.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the queue was
// full.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Close drains remaining events, closes the writer, and returns. Safe to
// call more than once.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.events)
		q.mu.Unlock()
		<-q.done
	})
	return q.writer.Close()
}

func (q *Queue) drain() {
	defer close(q.done)
	for ev := range q.events {
		if err := q.writer.Write(ev); err != nil {
			q.logger.Warn("telemetry write failed", "type", ev.Type, "error", err)
		}
	}
}
