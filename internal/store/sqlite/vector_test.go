// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-dev/recall/internal/store/sqlite"
)

func newVectorStore(t *testing.T, dims int) *sqlite.VectorStore {
	t.Helper()
	v, err := sqlite.NewVectorStore(testDBPath(t, "vectors"), dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestVectorStore_StoreAndSearch(t *testing.T) {
	v := newVectorStore(t, 3)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "vec-1", []float32{1, 0, 0}, map[string]any{"query_text": "alpha"}))
	require.NoError(t, v.Store(ctx, "vec-2", []float32{0, 1, 0}, map[string]any{"query_text": "beta"}))

	results, err := v.Search(ctx, []float32{1, 0, 0}, 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Exact match first with perfect similarity.
	assert.Equal(t, "vec-1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "alpha", results[0].Metadata["query_text"])
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestVectorStore_SearchThresholdFilters(t *testing.T) {
	v := newVectorStore(t, 3)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "near", []float32{1, 0, 0}, nil))
	require.NoError(t, v.Store(ctx, "far", []float32{0, 0, 1}, nil))

	results, err := v.Search(ctx, []float32{1, 0, 0}, 10, 0.9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].ID)
}

func TestVectorStore_StoreReplacesExisting(t *testing.T) {
	v := newVectorStore(t, 3)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "vec-1", []float32{1, 0, 0}, map[string]any{"rev": "first"}))
	require.NoError(t, v.Store(ctx, "vec-1", []float32{0, 1, 0}, map[string]any{"rev": "second"}))

	ids, err := v.ScrollIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vec-1"}, ids)

	results, err := v.Search(ctx, []float32{0, 1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "second", results[0].Metadata["rev"])
}

func TestVectorStore_ScrollAndDelete(t *testing.T) {
	v := newVectorStore(t, 2)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "a", []float32{1, 0}, nil))
	require.NoError(t, v.Store(ctx, "b", []float32{0, 1}, nil))

	ids, err := v.ScrollIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	require.NoError(t, v.Delete(ctx, []string{"a"}))

	ids, err = v.ScrollIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	require.NoError(t, v.Delete(ctx, nil))
}
