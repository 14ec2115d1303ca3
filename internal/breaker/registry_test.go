// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package breaker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-dev/recall/internal/breaker"
)

func TestRegistry_SingletonPerName(t *testing.T) {
	r := breaker.NewRegistry(breaker.Settings{})

	a := r.Get("llm-local")
	b := r.Get("llm-local")
	c := r.Get("llm-remote")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestRegistry_SharedDefaults(t *testing.T) {
	r := breaker.NewRegistry(breaker.Settings{FailureThreshold: 1, ResetTimeout: time.Hour})

	b := r.Get("embedding")
	require.Error(t, b.Do(context.Background(), failingOp))
	assert.Equal(t, breaker.StateOpen, b.State())
}

func TestRegistry_GetWithSettingsDoesNotReplace(t *testing.T) {
	r := breaker.NewRegistry(breaker.Settings{FailureThreshold: 1})

	a := r.Get("llm-local")
	b := r.GetWithSettings("llm-local", breaker.Settings{FailureThreshold: 100})
	assert.Same(t, a, b)
}

func TestRegistry_MetricsSortedByName(t *testing.T) {
	r := breaker.NewRegistry(breaker.Settings{})
	r.Get("zeta")
	r.Get("alpha")

	metrics := r.Metrics()
	require.Len(t, metrics, 2)
	assert.Equal(t, "alpha", metrics[0].Name)
	assert.Equal(t, "zeta", metrics[1].Name)
}

func TestRegistry_ResetAll(t *testing.T) {
	r := breaker.NewRegistry(breaker.Settings{FailureThreshold: 1, ResetTimeout: time.Hour})
	require.Error(t, r.Get("a").Do(context.Background(), failingOp))
	require.Error(t, r.Get("b").Do(context.Background(), failingOp))

	r.ResetAll()
	assert.Equal(t, breaker.StateClosed, r.Get("a").State())
	assert.Equal(t, breaker.StateClosed, r.Get("b").State())
}
