// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package breaker

import (
	"sort"
	"sync"

	"github.com/recall-dev/recall/pkg/health"
)

// Registry provides singleton breaker lookup keyed by dependency name.
// All breakers created through a Registry share its default settings.
// Registries are passed explicitly into constructors rather than held as
// package state, so tests get isolated instances.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults Settings
}

// NewRegistry creates an empty Registry with the given shared defaults.
func NewRegistry(defaults Settings) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		defaults: defaults.withDefaults(),
	}
}

// Get returns the breaker for name, creating it with the registry defaults
// on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = New(name, r.defaults)
	r.breakers[name] = b
	return b
}

// GetWithSettings returns the breaker for name, creating it with the given
// settings on first use. Settings of an existing breaker are not changed.
func (r *Registry) GetWithSettings(name string, settings Settings) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = New(name, settings)
	r.breakers[name] = b
	return b
}

// Metrics returns snapshots for every registered breaker, sorted by name.
func (r *Registry) Metrics() []health.Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]health.Metrics, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Metrics())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetAll forces every registered breaker back to CLOSED.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
