// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

// Package router classifies each query, dispatches it to a retrieval
// strategy, optionally generates a response through a circuit-breaker
// guarded language-model backend, and emits telemetry.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/recall-dev/recall/internal/backend"
	"github.com/recall-dev/recall/internal/breaker"
	"github.com/recall-dev/recall/internal/compress"
	"github.com/recall-dev/recall/internal/search"
	"github.com/recall-dev/recall/internal/store"
	"github.com/recall-dev/recall/internal/telemetry"
	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// sqlAdvisory is returned verbatim for SQL-shaped queries. Direct SQL
// execution is disabled by policy; the query never reaches the store.
const sqlAdvisory = "Direct SQL execution is disabled. Ask in natural language and the query will be routed to keyword, semantic, or hybrid search."

// Settings tune classification, expansion, compression, and generation.
// Zero values fall back to the documented defaults.
type Settings struct {
	TreeSearchEnabled bool

	// GapThreshold is the best-score floor below which a knowledge-gap
	// event is recorded. Default 0.4.
	GapThreshold float64

	DefaultLimit          int     // default 10
	DefaultKeywordLimit   int     // default 5
	DefaultScoreThreshold float64 // default 0.4

	ExpansionEnabled bool
	ExpansionTimeout time.Duration // default 5s

	CompressionEnabled  bool
	CompressionBudget   int // tokens, default 2000
	CompressionStrategy compress.Strategy

	GenTemperature float64       // default 0.2
	GenMaxTokens   int           // default 1024
	GenTimeout     time.Duration // default 30s
}

func (s Settings) withDefaults() Settings {
	if s.GapThreshold <= 0 {
		s.GapThreshold = 0.4
	}
	if s.DefaultLimit <= 0 {
		s.DefaultLimit = 10
	}
	if s.DefaultKeywordLimit <= 0 {
		s.DefaultKeywordLimit = 5
	}
	if s.DefaultScoreThreshold <= 0 {
		s.DefaultScoreThreshold = 0.4
	}
	if s.ExpansionTimeout <= 0 {
		s.ExpansionTimeout = 5 * time.Second
	}
	if s.CompressionBudget <= 0 {
		s.CompressionBudget = 2000
	}
	if s.CompressionStrategy == "" {
		s.CompressionStrategy = compress.StrategyHybrid
	}
	if s.GenTemperature <= 0 {
		s.GenTemperature = 0.2
	}
	if s.GenMaxTokens <= 0 {
		s.GenMaxTokens = 1024
	}
	if s.GenTimeout <= 0 {
		s.GenTimeout = 30 * time.Second
	}
	return s
}

// Request is one routed query.
type Request struct {
	Query string
	// Mode forces a route; empty or "auto" classifies.
	Mode Route

	PreferLocal bool
	// ForceRemote requests the remote backend for generation. Advisory
	// only: when no remote backend is configured the router silently
	// falls back to local (see backend.Selector).
	ForceRemote bool

	Limit          int
	KeywordLimit   int
	ScoreThreshold float64

	GenerateResponse bool
}

// Result is the structured outcome of one routed query.
type Result struct {
	Route         Route                `json:"route"`
	Response      string               `json:"response"`
	Results       []store.SearchResult `json:"results"`
	Keyword       []store.SearchResult `json:"keyword_results,omitempty"`
	Semantic      []store.SearchResult `json:"semantic_results,omitempty"`
	LatencyMS     int64                `json:"latency_ms"`
	InteractionID string               `json:"interaction_id"`
	Discovery     string               `json:"discovery,omitempty"`
	GapRecorded   bool                 `json:"gap_recorded"`
	Generated     bool                 `json:"generated"`
	CachedTokens  int                  `json:"cached_tokens,omitempty"`
}

// Router orchestrates one query end to end.
type Router struct {
	searcher search.Searcher
	selector *backend.Selector
	breakers *breaker.Registry
	sink     telemetry.Sink
	settings Settings
	logger   *slog.Logger

	errorCount atomic.Int64
	nowFunc    func() time.Time
}

// New wires a Router. selector may be nil when no language-model backend
// is configured; generation and expansion are then skipped.
func New(searcher search.Searcher, selector *backend.Selector, breakers *breaker.Registry, sink telemetry.Sink, settings Settings) *Router {
	if sink == nil {
		sink = telemetry.Noop{}
	}
	return &Router{
		searcher: searcher,
		selector: selector,
		breakers: breakers,
		sink:     sink,
		settings: settings.withDefaults(),
		logger:   slog.Default(),
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock. Tests only.
func (r *Router) SetNowFunc(f func() time.Time) { r.nowFunc = f }

// ErrorCount reports how many retrieval failures Route has propagated.
func (r *Router) ErrorCount() int64 { return r.errorCount.Load() }

// Route handles one query: classify, optionally expand, retrieve, track
// gaps, optionally generate, and emit telemetry. Retrieval failures
// propagate; expansion and generation failures degrade silently.
func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	if req.Query == "" {
		return nil, recallerr.New(recallerr.CodeRouterInvalidInput, "query must not be empty")
	}

	started := r.nowFunc()
	result := &Result{
		Route:         classify(req.Query, req.Mode, r.settings.TreeSearchEnabled),
		InteractionID: uuid.NewString(),
	}

	if result.Route == RouteSQL {
		result.Response = sqlAdvisory
		result.LatencyMS = r.sinceMS(started)
		r.emitQueryEvent(result)
		return result, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.settings.DefaultLimit
	}
	keywordLimit := req.KeywordLimit
	if keywordLimit <= 0 {
		keywordLimit = r.settings.DefaultKeywordLimit
	}
	scoreThreshold := req.ScoreThreshold
	if scoreThreshold <= 0 {
		scoreThreshold = r.settings.DefaultScoreThreshold
	}

	query := r.maybeExpand(ctx, req.Query, result.Route)

	if err := r.dispatch(ctx, query, limit, keywordLimit, scoreThreshold, result); err != nil {
		r.errorCount.Add(1)
		return nil, recallerr.Wrap(err, recallerr.CodeRouterSearchFailure, "retrieval failed",
			recallerr.FieldRoute(string(result.Route)))
	}

	result.GapRecorded = r.trackGap(req.Query, result.Results)

	result.Discovery = discoverySummary(result.Results)
	result.Response = result.Discovery

	if req.GenerateResponse {
		r.generate(ctx, req, result)
	}

	result.LatencyMS = r.sinceMS(started)
	r.emitQueryEvent(result)
	return result, nil
}

func (r *Router) dispatch(ctx context.Context, query string, limit, keywordLimit int, scoreThreshold float64, result *Result) error {
	switch result.Route {
	case RouteKeyword:
		results, err := r.searcher.Keyword(ctx, query, keywordLimit)
		if err != nil {
			return err
		}
		result.Keyword = results
		result.Results = results
	case RouteSemantic:
		results, err := r.searcher.Semantic(ctx, query, limit, scoreThreshold)
		if err != nil {
			return err
		}
		result.Semantic = results
		result.Results = results
	case RouteTree:
		results, err := r.searcher.Tree(ctx, query, limit, keywordLimit, scoreThreshold)
		if err != nil {
			return err
		}
		result.Results = results
	default:
		hybrid, err := r.searcher.Hybrid(ctx, query, limit, keywordLimit, scoreThreshold)
		if err != nil {
			return err
		}
		result.Keyword = hybrid.Keyword
		result.Semantic = hybrid.Semantic
		result.Results = hybrid.Merged
	}
	return nil
}

// trackGap records a knowledge-gap event when no result met the
// threshold. Fire and forget through the bounded telemetry queue; it can
// never fail the request.
func (r *Router) trackGap(query string, results []store.SearchResult) bool {
	best := search.BestScore(results)
	if best >= r.settings.GapThreshold {
		return false
	}

	collections := map[string]bool{}
	for _, res := range results {
		if res.Collection != "" {
			collections[res.Collection] = true
		}
	}
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}

	r.sink.Record(telemetry.EventKnowledgeGap, map[string]any{
		"query_hash":  hashQuery(query),
		"best_score":  best,
		"collections": names,
	})
	return true
}

func (r *Router) emitQueryEvent(result *Result) {
	r.sink.Record(telemetry.EventQuery, map[string]any{
		"route":         string(result.Route),
		"latency_ms":    result.LatencyMS,
		"results":       len(result.Results),
		"generated":     result.Generated,
		"cached_tokens": result.CachedTokens,
		"gap_recorded":  result.GapRecorded,
		"interaction":   result.InteractionID,
	})
}

func (r *Router) sinceMS(started time.Time) int64 {
	return r.nowFunc().Sub(started).Milliseconds()
}

// discoverySummary is the pre-generation response: a short legible digest
// of what retrieval found.
func discoverySummary(results []store.SearchResult) string {
	if len(results) == 0 {
		return "No stored solutions matched this query."
	}
	best := results[0]
	return fmt.Sprintf("Found %d stored solution(s); best match %s (score %.2f).", len(results), best.ID, best.Score)
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])[:16]
}
