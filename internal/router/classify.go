// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package router

import "strings"

// Route is the retrieval/generation strategy chosen for a query.
type Route string

const (
	RouteSQL      Route = "sql"
	RouteKeyword  Route = "keyword"
	RouteSemantic Route = "semantic"
	RouteTree     Route = "tree"
	RouteHybrid   Route = "hybrid"

	// RouteAuto asks the router to classify.
	RouteAuto Route = "auto"
)

// Token-count boundaries for auto classification.
const (
	keywordMaxTokens = 3
	treeMinTokens    = 8
)

// sqlPatterns are uppercase substrings that mark a query as SQL-shaped.
// Single keywords like UPDATE or SELECT appear in ordinary prose, so each
// pattern requires enough structure to be unambiguous. Matching is
// lexical only; SQL is never executed (see sqlAdvisory).
var sqlPatterns = []string{
	"INSERT INTO",
	"DELETE FROM",
	"DROP TABLE",
	"DROP DATABASE",
	"CREATE TABLE",
	"ALTER TABLE",
	"TRUNCATE TABLE",
}

// sqlPairs must both appear for a match.
var sqlPairs = [][2]string{
	{"SELECT ", " FROM "},
	{"UPDATE ", " SET "},
}

// looksLikeSQL reports whether the query matches the lexical SQL
// heuristic.
func looksLikeSQL(query string) bool {
	upper := strings.ToUpper(query)
	for _, p := range sqlPatterns {
		if strings.Contains(upper, p) {
			return true
		}
	}
	for _, pair := range sqlPairs {
		if strings.Contains(upper, pair[0]) && strings.Contains(upper, pair[1]) {
			return true
		}
	}
	return false
}

// tokenCount is the normalized whitespace token count used for route
// classification.
func tokenCount(query string) int {
	return len(strings.Fields(strings.TrimSpace(query)))
}

// classify picks a route for the query. Explicit modes win; auto applies
// the SQL heuristic then the token-count boundaries.
func classify(query string, mode Route, treeEnabled bool) Route {
	if mode != "" && mode != RouteAuto {
		return mode
	}
	if looksLikeSQL(query) {
		return RouteSQL
	}
	n := tokenCount(query)
	switch {
	case n <= keywordMaxTokens:
		return RouteKeyword
	case n >= treeMinTokens && treeEnabled:
		return RouteTree
	default:
		return RouteHybrid
	}
}
