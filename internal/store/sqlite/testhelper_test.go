// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/recall-dev/recall/internal/store"
	"github.com/recall-dev/recall/internal/store/sqlite"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

// newSolutionStore opens a fresh solution store and closes it on cleanup.
func newSolutionStore(t *testing.T) *sqlite.SolutionStore {
	t.Helper()
	s, err := sqlite.NewSolutionStore(testDBPath(t, "solutions"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func solution(id, query, text string, score float64, age time.Duration) *store.Solution {
	return &store.Solution{
		ID:         id,
		QueryText:  query,
		Solution:   text,
		ValueScore: score,
		CreatedAt:  time.Now().UTC().Add(-age),
	}
}
