// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package breaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	recallerr "github.com/recall-dev/recall/pkg/errors"
	"github.com/recall-dev/recall/pkg/health"
)

// State is the circuit breaker state.
type State string

const (
	// StateClosed lets calls pass through while counting failures.
	StateClosed State = "closed"
	// StateOpen fails calls immediately without invoking the operation.
	StateOpen State = "open"
	// StateHalfOpen allows limited probe calls to test recovery.
	StateHalfOpen State = "half_open"
)

// Countable decides whether a failure counts toward opening the circuit.
// Errors for which it returns false pass through transparently: they are
// returned to the caller but never move the breaker toward OPEN.
type Countable func(error) bool

// Settings configures a single breaker instance.
type Settings struct {
	// FailureThreshold is the number of counted failures in CLOSED that
	// trips the breaker to OPEN.
	FailureThreshold int
	// ResetTimeout is how long after the last failure the breaker waits
	// before allowing a HALF_OPEN probe.
	ResetTimeout time.Duration
	// SuccessThreshold is the number of consecutive HALF_OPEN successes
	// required to close the breaker again.
	SuccessThreshold int
	// CallTimeout bounds each guarded call. Zero means the caller's
	// context is the only deadline.
	CallTimeout time.Duration
	// IsCountable filters which failures count. Nil counts everything
	// except context cancellation.
	IsCountable Countable
}

// DefaultSettings are applied for any zero-valued Settings field.
var DefaultSettings = Settings{
	FailureThreshold: 5,
	ResetTimeout:     60 * time.Second,
	SuccessThreshold: 1,
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = DefaultSettings.FailureThreshold
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = DefaultSettings.ResetTimeout
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = DefaultSettings.SuccessThreshold
	}
	if s.IsCountable == nil {
		s.IsCountable = defaultCountable
	}
	return s
}

// defaultCountable counts every failure except context cancellation by the
// caller. Deadline expiry counts: a hung dependency is exactly what the
// breaker exists to detect.
func defaultCountable(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Breaker is a fault-isolation gate in front of one downstream dependency.
// Each protected dependency owns its own instance; state transitions are
// serialized by an internal mutex, but the protected operation itself runs
// outside the lock so slow calls never block concurrent callers.
type Breaker struct {
	name     string
	settings Settings

	mu           sync.Mutex
	state        State
	failureCount int64
	successCount int
	lastFailure  time.Time

	logger  *slog.Logger
	nowFunc func() time.Time // for testing
}

// New creates a Breaker in CLOSED state.
func New(name string, settings Settings) *Breaker {
	return &Breaker{
		name:     name,
		settings: settings.withDefaults(),
		state:    StateClosed,
		logger:   slog.Default(),
		nowFunc:  time.Now,
	}
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string { return b.name }

// SetNowFunc overrides the time source (for testing).
func (b *Breaker) SetNowFunc(fn func() time.Time) {
	b.mu.Lock()
	b.nowFunc = fn
	b.mu.Unlock()
}

// State returns the current state, applying the lazy OPEN→HALF_OPEN
// transition if the reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// currentStateLocked evaluates the lazy OPEN→HALF_OPEN transition.
// The caller MUST hold b.mu.
func (b *Breaker) currentStateLocked() State {
	if b.state == StateOpen && b.nowFunc().Sub(b.lastFailure) >= b.settings.ResetTimeout {
		b.transitionLocked(StateHalfOpen)
	}
	return b.state
}

// Do runs op through the breaker. When the circuit is OPEN and the reset
// timeout has not elapsed, op is never invoked and a CodeBreakerOpen error
// is returned immediately.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	if b.settings.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.settings.CallTimeout)
		defer cancel()
	}

	err := op(ctx)
	b.afterCall(err)
	return err
}

// beforeCall admits or rejects the call based on the current state.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.currentStateLocked() == StateOpen {
		retryAt := b.lastFailure.Add(b.settings.ResetTimeout)
		return recallerr.New(
			recallerr.CodeBreakerOpen,
			"circuit open: calls to "+b.name+" are failing fast",
			recallerr.FieldBreaker(b.name),
			recallerr.Field("retry_at", retryAt),
		)
	}
	return nil
}

// afterCall records the call outcome and applies state transitions.
func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.onSuccessLocked()
		return
	}
	if !b.settings.IsCountable(err) {
		return
	}
	b.onFailureLocked()
}

func (b *Breaker) onSuccessLocked() {
	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.settings.SuccessThreshold {
			b.failureCount = 0
			b.transitionLocked(StateClosed)
		}
	}
}

func (b *Breaker) onFailureLocked() {
	b.failureCount++
	b.lastFailure = b.nowFunc()

	switch b.state {
	case StateClosed:
		if b.failureCount >= int64(b.settings.FailureThreshold) {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		// A single probe failure re-opens the circuit and restarts the
		// reset-timeout clock with a clean failure count.
		b.failureCount = 0
		b.transitionLocked(StateOpen)
	}
}

func (b *Breaker) transitionLocked(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.successCount = 0
	b.logger.Info("circuit breaker state change",
		"breaker", b.name, "from", string(from), "to", string(to),
		"failure_count", b.failureCount)
}

// Reset forces the breaker back to CLOSED with zero failures. Intended for
// operator intervention.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.successCount = 0
	b.transitionLocked(StateClosed)
}

// Metrics returns a point-in-time snapshot of the breaker state.
func (b *Breaker) Metrics() health.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentStateLocked()
	m := health.Metrics{
		Name:         b.name,
		State:        string(state),
		FailureCount: b.failureCount,
		Available:    state != StateOpen,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		m.LastFailureAt = &t
	}
	if state == StateOpen {
		retryAt := b.lastFailure.Add(b.settings.ResetTimeout)
		m.RetryAt = &retryAt
	}
	return m
}
