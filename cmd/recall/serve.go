// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/recall-dev/recall/internal/backend"
	"github.com/recall-dev/recall/internal/breaker"
	"github.com/recall-dev/recall/internal/compress"
	"github.com/recall-dev/recall/internal/config"
	"github.com/recall-dev/recall/internal/embedding"
	"github.com/recall-dev/recall/internal/gc"
	"github.com/recall-dev/recall/internal/router"
	"github.com/recall-dev/recall/internal/search"
	"github.com/recall-dev/recall/internal/secrets"
	"github.com/recall-dev/recall/internal/server"
	"github.com/recall-dev/recall/internal/store"
	"github.com/recall-dev/recall/internal/store/qdrant"
	"github.com/recall-dev/recall/internal/store/sqlite"
	"github.com/recall-dev/recall/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recall engine and HTTP server",
		Long:  "Load configuration, open the stores, wire retrieval and generation, start the garbage-collection scheduler, and serve the HTTP API.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cmd, cfg)

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.close()

	srv, err := server.New(server.Config{ListenAddr: cfg.Server.Listen})
	if err != nil {
		return err
	}
	srv.RegisterServices(&server.Services{
		Query:    engine.router,
		GC:       engine.collector,
		Breakers: engine.breakers,
	})

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		engine.scheduler.Run(ctx)
	}()

	slog.Info("recall listening", "addr", cfg.Server.Listen)
	err = srv.Start(ctx)

	// The scheduler must be out of its cycle before close() tears down
	// the sink and stores it records to.
	stop()
	<-schedulerDone
	return err
}

// engine bundles the wired subsystems and their cleanup.
type engine struct {
	router    *router.Router
	collector *gc.Collector
	scheduler *gc.Scheduler
	breakers  *breaker.Registry

	solutions store.SolutionStore
	vectors   store.VectorStore
	sink      telemetry.Sink
}

func (e *engine) close() {
	if err := e.sink.Close(); err != nil {
		slog.Warn("closing telemetry sink", "error", err)
	}
	if err := e.vectors.Close(); err != nil {
		slog.Warn("closing vector store", "error", err)
	}
	if err := e.solutions.Close(); err != nil {
		slog.Warn("closing solution store", "error", err)
	}
}

// buildEngine wires every subsystem from config.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	solutions, err := sqlite.NewSolutionStore(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	embedder := buildEmbedder(ctx, cfg)

	vectors, err := buildVectorStore(ctx, cfg, embedder.Dimension())
	if err != nil {
		_ = solutions.Close()
		return nil, err
	}

	searcher := search.NewStoreSearcher(solutions, vectors, embedder)
	selector := buildSelector(cfg)

	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSeconds) * time.Second,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		CallTimeout:      time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
	})

	sink := buildSink(cfg)

	queryRouter := router.New(searcher, selector, breakers, sink, router.Settings{
		TreeSearchEnabled:     cfg.Router.TreeSearchEnabled,
		GapThreshold:          cfg.Router.GapThreshold,
		DefaultLimit:          cfg.Router.Limit,
		DefaultKeywordLimit:   cfg.Router.KeywordLimit,
		DefaultScoreThreshold: cfg.Router.ScoreThreshold,
		ExpansionEnabled:      cfg.Router.Expansion.Enabled,
		ExpansionTimeout:      time.Duration(cfg.Router.Expansion.TimeoutSeconds) * time.Second,
		CompressionEnabled:    cfg.Compression.Enabled,
		CompressionBudget:     cfg.Compression.MaxTokens,
		CompressionStrategy:   compress.Strategy(cfg.Compression.Strategy),
		GenTimeout:            time.Duration(cfg.Backends.GenTimeoutSeconds) * time.Second,
		GenMaxTokens:          cfg.Backends.GenMaxTokens,
	})

	collector := gc.New(solutions, vectors, sink, gc.Config{
		MaxSolutions:     cfg.GC.MaxSolutions,
		MaxAgeDays:       cfg.GC.MaxAgeDays,
		MinValueScore:    cfg.GC.MinValueScore,
		DedupeSimilarity: cfg.GC.DedupeSimilarity,
	})
	scheduler := gc.NewScheduler(collector, time.Duration(cfg.GC.IntervalSeconds)*time.Second)

	return &engine{
		router:    queryRouter,
		collector: collector,
		scheduler: scheduler,
		breakers:  breakers,
		solutions: solutions,
		vectors:   vectors,
		sink:      sink,
	}, nil
}

// buildEmbedder creates the Ollama embedder, wrapped in the Redis cache
// when enabled.
func buildEmbedder(ctx context.Context, cfg *config.Config) embedding.Embedder {
	base := embedding.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model, 0)
	if !cfg.Embedding.Cache.Enabled {
		return base
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Embedding.Cache.RedisAddr})
	cache := embedding.NewCache(client, cfg.Embedding.Cache.KeyPrefix, base.Model(),
		time.Duration(cfg.Embedding.Cache.TTLSeconds)*time.Second)
	if cfg.Embedding.Cache.MigrateLegacy {
		cache.MigrateLegacyKeys(ctx)
	}
	return embedding.NewCachedEmbedder(base, cache)
}

func buildVectorStore(ctx context.Context, cfg *config.Config, dimension int) (store.VectorStore, error) {
	if cfg.Storage.Vector.Backend == "qdrant" {
		return qdrant.New(ctx, qdrant.Config{
			URL:        cfg.Storage.Vector.Qdrant.URL,
			Collection: cfg.Storage.Vector.Qdrant.Collection,
			Dimension:  dimension,
		})
	}
	return sqlite.NewVectorStore(cfg.Storage.Path, dimension)
}

// buildSelector wires local and remote completers. Anthropic is preferred
// as the remote backend when both are configured.
func buildSelector(cfg *config.Config) *backend.Selector {
	keyring := secrets.NewKeyringStore()

	var local backend.Completer
	if cfg.Backends.Local.URL != "" {
		local = backend.NewOllamaBackend(cfg.Backends.Local.URL, cfg.Backends.Local.Model)
	}

	var remote backend.Completer
	if cfg.Backends.Anthropic.Model != "" {
		if key := secrets.ResolveAPIKey(keyring, "anthropic", cfg.Backends.Anthropic.APIKey); key != "" {
			if b, err := backend.NewAnthropicBackend(key, cfg.Backends.Anthropic.Model); err == nil {
				remote = b
			} else {
				slog.Warn("anthropic backend disabled", "error", err)
			}
		}
	}
	if remote == nil && cfg.Backends.OpenAI.Model != "" {
		if key := secrets.ResolveAPIKey(keyring, "openai", cfg.Backends.OpenAI.APIKey); key != "" {
			if b, err := backend.NewOpenAIBackend(key, "", cfg.Backends.OpenAI.Model); err == nil {
				remote = b
			} else {
				slog.Warn("openai backend disabled", "error", err)
			}
		}
	}

	if local == nil && remote == nil {
		slog.Warn("no language-model backend configured, generation and expansion disabled")
	}
	return backend.NewSelector(local, remote)
}

// buildSink creates the telemetry queue when a path is configured, a
// no-op sink otherwise.
func buildSink(cfg *config.Config) telemetry.Sink {
	if cfg.Telemetry.Path == "" {
		return telemetry.Noop{}
	}
	writer, err := telemetry.NewJSONLWriter(cfg.Telemetry.Path)
	if err != nil {
		slog.Warn("telemetry disabled", "error", err)
		return telemetry.Noop{}
	}
	return telemetry.NewQueue(writer, cfg.Telemetry.QueueSize)
}
