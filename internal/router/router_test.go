// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-dev/recall/internal/backend"
	"github.com/recall-dev/recall/internal/breaker"
	"github.com/recall-dev/recall/internal/search"
	"github.com/recall-dev/recall/internal/store"
	"github.com/recall-dev/recall/internal/telemetry"
	recallerr "github.com/recall-dev/recall/pkg/errors"
)

type fakeSearcher struct {
	lastQuery string
	results   []store.SearchResult
	err       error

	keywordCalls, semanticCalls, treeCalls, hybridCalls int
}

func (f *fakeSearcher) Keyword(_ context.Context, query string, _ int) ([]store.SearchResult, error) {
	f.keywordCalls++
	f.lastQuery = query
	return f.results, f.err
}

func (f *fakeSearcher) Semantic(_ context.Context, query string, _ int, _ float64) ([]store.SearchResult, error) {
	f.semanticCalls++
	f.lastQuery = query
	return f.results, f.err
}

func (f *fakeSearcher) Tree(_ context.Context, query string, _, _ int, _ float64) ([]store.SearchResult, error) {
	f.treeCalls++
	f.lastQuery = query
	return f.results, f.err
}

func (f *fakeSearcher) Hybrid(_ context.Context, query string, _, _ int, _ float64) (*search.HybridResult, error) {
	f.hybridCalls++
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return &search.HybridResult{Keyword: f.results, Semantic: f.results, Merged: f.results}, nil
}

type fakeCompleter struct {
	text  string
	err   error
	calls int
}

func (f *fakeCompleter) Name() string { return "fake-backend" }
func (f *fakeCompleter) Kind() backend.Kind {
	return backend.KindLocal
}
func (f *fakeCompleter) Complete(_ context.Context, _ backend.Request) (*backend.Completion, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &backend.Completion{Text: f.text, Usage: backend.Usage{CacheReadTokens: 7}}, nil
}

type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *captureSink) Record(eventType string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, telemetry.Event{Type: eventType, Payload: payload})
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) byType(eventType string) []telemetry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []telemetry.Event
	for _, ev := range s.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func goodResults() []store.SearchResult {
	return []store.SearchResult{
		{ID: "s1", Collection: "solutions", Score: 0.92, Text: "Restart the service with systemctl."},
		{ID: "s2", Collection: "solutions", Score: 0.55, Text: "Check journal logs first."},
	}
}

func newTestRouter(searcher search.Searcher, sel *backend.Selector, sink telemetry.Sink, settings Settings) *Router {
	reg := breaker.NewRegistry(breaker.Settings{FailureThreshold: 2, ResetTimeout: time.Minute})
	return New(searcher, sel, reg, sink, settings)
}

func TestRouteKeywordByTokenCount(t *testing.T) {
	searcher := &fakeSearcher{results: goodResults()}
	r := newTestRouter(searcher, nil, nil, Settings{})

	result, err := r.Route(context.Background(), Request{Query: "nix"})
	require.NoError(t, err)

	assert.Equal(t, RouteKeyword, result.Route)
	assert.Equal(t, 1, searcher.keywordCalls)
	assert.NotEmpty(t, result.InteractionID)
	assert.Len(t, result.Results, 2)
}

func TestRouteTreeWhenEnabled(t *testing.T) {
	searcher := &fakeSearcher{results: goodResults()}
	r := newTestRouter(searcher, nil, nil, Settings{TreeSearchEnabled: true})

	result, err := r.Route(context.Background(), Request{Query: "how do I configure nginx to proxy websocket connections upstream"})
	require.NoError(t, err)
	assert.Equal(t, RouteTree, result.Route)
	assert.Equal(t, 1, searcher.treeCalls)
}

func TestRouteSQLAdvisoryNeverSearches(t *testing.T) {
	searcher := &fakeSearcher{results: goodResults()}
	r := newTestRouter(searcher, nil, nil, Settings{})

	result, err := r.Route(context.Background(), Request{Query: "'; DROP TABLE solved_issues; --"})
	require.NoError(t, err)

	assert.Equal(t, RouteSQL, result.Route)
	assert.Equal(t, sqlAdvisory, result.Response)
	assert.Zero(t, searcher.keywordCalls+searcher.semanticCalls+searcher.treeCalls+searcher.hybridCalls)
}

func TestRouteRetrievalErrorPropagates(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("store offline")}
	r := newTestRouter(searcher, nil, nil, Settings{})

	_, err := r.Route(context.Background(), Request{Query: "how do I restart nginx"})
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeRouterSearchFailure))
	assert.EqualValues(t, 1, r.ErrorCount())
}

func TestRouteEmptyQuery(t *testing.T) {
	r := newTestRouter(&fakeSearcher{}, nil, nil, Settings{})
	_, err := r.Route(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeRouterInvalidInput))
}

func TestRouteGapRecordedBelowThreshold(t *testing.T) {
	searcher := &fakeSearcher{results: []store.SearchResult{
		{ID: "weak", Collection: "solutions", Score: 0.2, Text: "barely related"},
	}}
	sink := &captureSink{}
	r := newTestRouter(searcher, nil, sink, Settings{})

	result, err := r.Route(context.Background(), Request{Query: "nix"})
	require.NoError(t, err)
	assert.True(t, result.GapRecorded)

	gaps := sink.byType(telemetry.EventKnowledgeGap)
	require.Len(t, gaps, 1)
	assert.NotEmpty(t, gaps[0].Payload["query_hash"])
	assert.InDelta(t, 0.2, gaps[0].Payload["best_score"].(float64), 1e-9)
	assert.ElementsMatch(t, []string{"solutions"}, gaps[0].Payload["collections"])
}

func TestRouteNoGapAboveThreshold(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(&fakeSearcher{results: goodResults()}, nil, sink, Settings{})

	result, err := r.Route(context.Background(), Request{Query: "nix"})
	require.NoError(t, err)
	assert.False(t, result.GapRecorded)
	assert.Empty(t, sink.byType(telemetry.EventKnowledgeGap))
}

func TestRouteGenerationSuccess(t *testing.T) {
	completer := &fakeCompleter{text: "Run systemctl restart nginx."}
	sel := backend.NewSelector(completer, nil)
	r := newTestRouter(&fakeSearcher{results: goodResults()}, sel, nil, Settings{})

	result, err := r.Route(context.Background(), Request{Query: "nix", GenerateResponse: true})
	require.NoError(t, err)

	assert.True(t, result.Generated)
	assert.Equal(t, "Run systemctl restart nginx.", result.Response)
	assert.Equal(t, 7, result.CachedTokens)
	assert.NotEmpty(t, result.Discovery)
}

func TestRouteGenerationFailureFallsBackToSummary(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model crashed")}
	sel := backend.NewSelector(completer, nil)
	r := newTestRouter(&fakeSearcher{results: goodResults()}, sel, nil, Settings{})

	result, err := r.Route(context.Background(), Request{Query: "nix", GenerateResponse: true})
	require.NoError(t, err)

	assert.False(t, result.Generated)
	assert.Equal(t, result.Discovery, result.Response)
	assert.Zero(t, r.ErrorCount())
}

func TestRouteGenerationThroughBreaker(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model crashed")}
	sel := backend.NewSelector(completer, nil)
	r := newTestRouter(&fakeSearcher{results: goodResults()}, sel, nil, Settings{})

	// FailureThreshold is 2: the third request must fail fast without
	// invoking the backend.
	for i := 0; i < 3; i++ {
		_, err := r.Route(context.Background(), Request{Query: "nix", GenerateResponse: true})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, completer.calls)
}

func TestRouteExpansionReplacesQuery(t *testing.T) {
	completer := &fakeCompleter{text: "1. systemd service restart procedure\n2. restarting daemons"}
	sel := backend.NewSelector(completer, nil)
	searcher := &fakeSearcher{results: goodResults()}
	r := newTestRouter(searcher, sel, nil, Settings{ExpansionEnabled: true})

	_, err := r.Route(context.Background(), Request{Query: "how do I restart nginx"})
	require.NoError(t, err)

	assert.Equal(t, "systemd service restart procedure", searcher.lastQuery)
	assert.Equal(t, 1, completer.calls)
}

func TestRouteExpansionFailureUsesOriginal(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("timeout")}
	sel := backend.NewSelector(completer, nil)
	searcher := &fakeSearcher{results: goodResults()}
	r := newTestRouter(searcher, sel, nil, Settings{ExpansionEnabled: true})

	_, err := r.Route(context.Background(), Request{Query: "how do I restart nginx"})
	require.NoError(t, err)
	assert.Equal(t, "how do I restart nginx", searcher.lastQuery)
}

func TestRouteExpansionSkippedForKeyword(t *testing.T) {
	completer := &fakeCompleter{text: "expanded"}
	sel := backend.NewSelector(completer, nil)
	searcher := &fakeSearcher{results: goodResults()}
	r := newTestRouter(searcher, sel, nil, Settings{ExpansionEnabled: true})

	_, err := r.Route(context.Background(), Request{Query: "nix"})
	require.NoError(t, err)
	assert.Zero(t, completer.calls)
	assert.Equal(t, "nix", searcher.lastQuery)
}

func TestRouteEmitsQueryTelemetry(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(&fakeSearcher{results: goodResults()}, nil, sink, Settings{})

	result, err := r.Route(context.Background(), Request{Query: "nix"})
	require.NoError(t, err)

	queries := sink.byType(telemetry.EventQuery)
	require.Len(t, queries, 1)
	assert.Equal(t, string(RouteKeyword), queries[0].Payload["route"])
	assert.Equal(t, result.InteractionID, queries[0].Payload["interaction"])
}
