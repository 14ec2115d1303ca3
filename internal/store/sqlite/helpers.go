// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package sqlite

import (
	"math"
	"strings"
	"time"
)

// formatTime serialises a time for storage as an RFC3339Nano UTC string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// inArgs builds a "?,?,..." placeholder string and the matching args slice.
func inArgs(ids []string) (string, []any) {
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return placeholders, args
}

// ftsQuote turns free text into an FTS5 query of quoted terms, so user
// input containing MATCH operators cannot break the query syntax.
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ReplaceAll(term, `"`, `""`)
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// rankToScore maps an FTS5 bm25 rank (more negative = better) into 0..1.
func rankToScore(rank float64) float64 {
	return 1 - 1/(1+math.Abs(rank))
}
