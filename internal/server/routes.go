// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/recall-dev/recall/internal/gc"
	"github.com/recall-dev/recall/internal/router"
	"github.com/recall-dev/recall/internal/store"
	recallerr "github.com/recall-dev/recall/pkg/errors"
	"github.com/recall-dev/recall/pkg/health"
)

// QueryService routes one query end to end.
type QueryService interface {
	Route(ctx context.Context, req router.Request) (*router.Result, error)
}

// GCService runs and reports on garbage collection.
type GCService interface {
	RunFullGC(ctx context.Context) (*gc.Report, error)
	Statistics(ctx context.Context) (store.StorageStats, error)
}

// BreakerService exposes circuit-breaker state.
type BreakerService interface {
	Metrics() []health.Metrics
}

// Services are the engine dependencies the HTTP layer delegates to.
type Services struct {
	Query    QueryService
	GC       GCService
	Breakers BreakerService
}

// RegisterServices sets the service dependencies and registers REST
// routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "query",
		Method:      http.MethodPost,
		Path:        "/api/v1/query",
		Summary:     "Route a query through retrieval and optional generation",
		Tags:        []string{"query"},
	}, s.handleQuery)

	huma.Register(s.api, huma.Operation{
		OperationID: "gc-run",
		Method:      http.MethodPost,
		Path:        "/api/v1/gc/run",
		Summary:     "Run a full garbage-collection cycle",
		Tags:        []string{"gc"},
	}, s.handleGCRun)

	huma.Register(s.api, huma.Operation{
		OperationID: "gc-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/gc/stats",
		Summary:     "Knowledge store statistics",
		Tags:        []string{"gc"},
	}, s.handleGCStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-breakers",
		Method:      http.MethodGet,
		Path:        "/api/v1/breakers",
		Summary:     "Circuit breaker states",
		Tags:        []string{"system"},
	}, s.handleBreakers)
}

// --- Request/Response types for huma ---

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok" doc:"Health status"`
	}
}

type queryInput struct {
	Body struct {
		Query          string  `json:"query" minLength:"1" doc:"Query text"`
		Mode           string  `json:"mode,omitempty" enum:"auto,sql,keyword,semantic,tree,hybrid" doc:"Force a route; empty classifies automatically"`
		PreferLocal    bool    `json:"prefer_local,omitempty" doc:"Prefer the local backend for generation"`
		ForceRemote    bool    `json:"force_remote,omitempty" doc:"Request the remote backend; advisory only, falls back to local when no remote is configured"`
		Limit          int     `json:"limit,omitempty" minimum:"0" doc:"Max results"`
		KeywordLimit   int     `json:"keyword_limit,omitempty" minimum:"0" doc:"Max lexical results"`
		ScoreThreshold float64 `json:"score_threshold,omitempty" minimum:"0" maximum:"1" doc:"Minimum relevance score"`
		Generate       bool    `json:"generate,omitempty" doc:"Generate a response with a language model"`
	}
}

type queryOutput struct {
	Body router.Result
}

type gcRunOutput struct {
	Body gc.Report
}

type gcStatsOutput struct {
	Body struct {
		Count       int64   `json:"count"`
		AvgValue    float64 `json:"avg_value"`
		OldestAt    string  `json:"oldest_at,omitempty"`
		NewestAt    string  `json:"newest_at,omitempty"`
		SizeBytes   int64   `json:"size_bytes"`
		MaxEntries  int     `json:"max_entries"`
		Utilization float64 `json:"utilization"`
	}
}

type breakersOutput struct {
	Body struct {
		Breakers []health.Metrics `json:"breakers"`
	}
}

// --- Handlers ---

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

func (s *Server) handleQuery(ctx context.Context, input *queryInput) (*queryOutput, error) {
	if s.services == nil || s.services.Query == nil {
		return nil, huma.Error503ServiceUnavailable("query service not available")
	}

	result, err := s.services.Query.Route(ctx, router.Request{
		Query:            input.Body.Query,
		Mode:             router.Route(input.Body.Mode),
		PreferLocal:      input.Body.PreferLocal,
		ForceRemote:      input.Body.ForceRemote,
		Limit:            input.Body.Limit,
		KeywordLimit:     input.Body.KeywordLimit,
		ScoreThreshold:   input.Body.ScoreThreshold,
		GenerateResponse: input.Body.Generate,
	})
	if err != nil {
		if recallerr.IsInvalidInput(err) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, s.internalError("query failed", err)
	}

	return &queryOutput{Body: *result}, nil
}

func (s *Server) handleGCRun(ctx context.Context, _ *struct{}) (*gcRunOutput, error) {
	if s.services == nil || s.services.GC == nil {
		return nil, huma.Error503ServiceUnavailable("gc service not available")
	}

	report, err := s.services.GC.RunFullGC(ctx)
	if err != nil {
		return nil, s.internalError("gc cycle failed", err)
	}
	return &gcRunOutput{Body: *report}, nil
}

func (s *Server) handleGCStats(ctx context.Context, _ *struct{}) (*gcStatsOutput, error) {
	if s.services == nil || s.services.GC == nil {
		return nil, huma.Error503ServiceUnavailable("gc service not available")
	}

	stats, err := s.services.GC.Statistics(ctx)
	if err != nil {
		return nil, s.internalError("reading storage statistics", err)
	}

	out := &gcStatsOutput{}
	out.Body.Count = stats.Count
	out.Body.AvgValue = stats.AvgValue
	if !stats.OldestAt.IsZero() {
		out.Body.OldestAt = stats.OldestAt.UTC().Format(time.RFC3339)
	}
	if !stats.NewestAt.IsZero() {
		out.Body.NewestAt = stats.NewestAt.UTC().Format(time.RFC3339)
	}
	out.Body.SizeBytes = stats.SizeBytes
	out.Body.MaxEntries = stats.MaxEntries
	out.Body.Utilization = stats.Utilization()
	return out, nil
}

func (s *Server) handleBreakers(_ context.Context, _ *struct{}) (*breakersOutput, error) {
	if s.services == nil || s.services.Breakers == nil {
		return nil, huma.Error503ServiceUnavailable("breaker registry not available")
	}

	out := &breakersOutput{}
	out.Body.Breakers = s.services.Breakers.Metrics()
	return out, nil
}

// internalError logs the full error under a short correlation id and
// returns an opaque 5xx to the client.
func (s *Server) internalError(msg string, err error) error {
	errID := uuid.NewString()[:8]
	slog.Error(msg, "error_id", errID, "error", err)
	return huma.Error500InternalServerError(msg + " (error id " + errID + ")")
}
