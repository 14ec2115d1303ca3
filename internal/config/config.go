// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// Config is the top-level Recall configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Router      RouterConfig      `mapstructure:"router"`
	Compression CompressionConfig `mapstructure:"compression"`
	Backends    BackendsConfig    `mapstructure:"backends"`
	GC          GCConfig          `mapstructure:"gc"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// StorageConfig selects the relational and vector backends.
type StorageConfig struct {
	Path   string       `mapstructure:"path"`
	Vector VectorConfig `mapstructure:"vector"`
}

// VectorConfig selects where embeddings live.
type VectorConfig struct {
	Backend string       `mapstructure:"backend"`
	Qdrant  QdrantConfig `mapstructure:"qdrant"`
}

// QdrantConfig points at an external Qdrant instance.
type QdrantConfig struct {
	URL        string `mapstructure:"url"`
	Collection string `mapstructure:"collection"`
}

// EmbeddingConfig controls the embedding service and its cache.
type EmbeddingConfig struct {
	Model     string      `mapstructure:"model"`
	OllamaURL string      `mapstructure:"ollama_url"`
	Cache     CacheConfig `mapstructure:"cache"`
}

// CacheConfig controls the Redis embedding cache.
type CacheConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RedisAddr     string `mapstructure:"redis_addr"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	TTLSeconds    int    `mapstructure:"ttl_seconds"`
	MigrateLegacy bool   `mapstructure:"migrate_legacy"`
}

// BreakerConfig sets shared circuit-breaker defaults.
type BreakerConfig struct {
	FailureThreshold    int `mapstructure:"failure_threshold"`
	ResetTimeoutSeconds int `mapstructure:"reset_timeout_seconds"`
	SuccessThreshold    int `mapstructure:"success_threshold"`
	TimeoutSeconds      int `mapstructure:"timeout_seconds"`
}

// RouterConfig tunes query classification and retrieval.
type RouterConfig struct {
	ScoreThreshold    float64         `mapstructure:"score_threshold"`
	GapThreshold      float64         `mapstructure:"gap_threshold"`
	TreeSearchEnabled bool            `mapstructure:"tree_search_enabled"`
	Limit             int             `mapstructure:"limit"`
	KeywordLimit      int             `mapstructure:"keyword_limit"`
	Expansion         ExpansionConfig `mapstructure:"expansion"`
}

// ExpansionConfig controls LLM query expansion.
type ExpansionConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
}

// CompressionConfig bounds generated prompt context.
type CompressionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Strategy  string `mapstructure:"strategy"`
}

// BackendsConfig configures language-model backends. A backend with an
// empty model (remote) or URL (local) is treated as not configured.
type BackendsConfig struct {
	Local     LocalBackendConfig  `mapstructure:"local"`
	OpenAI    RemoteBackendConfig `mapstructure:"openai"`
	Anthropic RemoteBackendConfig `mapstructure:"anthropic"`

	GenTimeoutSeconds int `mapstructure:"gen_timeout_seconds"`
	GenMaxTokens      int `mapstructure:"gen_max_tokens"`
}

// LocalBackendConfig points at a local Ollama server.
type LocalBackendConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// RemoteBackendConfig holds a remote provider's model and credentials.
// APIKey may be empty; the secrets resolver falls back to the provider's
// environment variable and the OS keyring.
type RemoteBackendConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// GCConfig bounds the knowledge store.
type GCConfig struct {
	MaxSolutions     int     `mapstructure:"max_solutions"`
	MaxAgeDays       int     `mapstructure:"max_age_days"`
	MinValueScore    float64 `mapstructure:"min_value_score"`
	DedupeSimilarity float64 `mapstructure:"dedupe_similarity"`
	IntervalSeconds  int     `mapstructure:"interval_seconds"`
}

// TelemetryConfig controls the event sink.
type TelemetryConfig struct {
	Path      string `mapstructure:"path"`
	QueueSize int    `mapstructure:"queue_size"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix RECALL_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("storage.path", "recall.db")
	v.SetDefault("storage.vector.backend", "sqlite")
	v.SetDefault("storage.vector.qdrant.collection", "solutions")
	v.SetDefault("embedding.model", "all-minilm:l6-v2")
	v.SetDefault("embedding.ollama_url", "http://localhost:11434")
	v.SetDefault("embedding.cache.enabled", false)
	v.SetDefault("embedding.cache.redis_addr", "localhost:6379")
	v.SetDefault("embedding.cache.key_prefix", "recall:emb:")
	v.SetDefault("embedding.cache.ttl_seconds", 7*24*3600)
	v.SetDefault("embedding.cache.migrate_legacy", true)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_seconds", 60)
	v.SetDefault("breaker.success_threshold", 1)
	v.SetDefault("breaker.timeout_seconds", 30)
	v.SetDefault("router.score_threshold", 0.4)
	v.SetDefault("router.gap_threshold", 0.4)
	v.SetDefault("router.tree_search_enabled", true)
	v.SetDefault("router.limit", 10)
	v.SetDefault("router.keyword_limit", 5)
	v.SetDefault("router.expansion.enabled", false)
	v.SetDefault("router.expansion.timeout_seconds", 5)
	v.SetDefault("compression.enabled", true)
	v.SetDefault("compression.max_tokens", 2000)
	v.SetDefault("compression.strategy", "hybrid")
	v.SetDefault("backends.local.url", "http://localhost:11434")
	v.SetDefault("backends.local.model", "llama3.2")
	v.SetDefault("backends.gen_timeout_seconds", 30)
	v.SetDefault("backends.gen_max_tokens", 1024)
	v.SetDefault("gc.max_solutions", 10000)
	v.SetDefault("gc.max_age_days", 90)
	v.SetDefault("gc.min_value_score", 0.3)
	v.SetDefault("gc.dedupe_similarity", 0.95)
	v.SetDefault("gc.interval_seconds", 3600)
	v.SetDefault("telemetry.path", "")
	v.SetDefault("telemetry.queue_size", 256)
	v.SetDefault("logging.level", "info")

	// Environment
	v.SetEnvPrefix("RECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, recallerr.Errorf(recallerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, recallerr.Errorf(recallerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns every
// validation error found rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateRouter()...)
	errs = append(errs, c.validateCompression()...)
	errs = append(errs, c.validateBreaker()...)
	errs = append(errs, c.validateGC()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}
	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %q",
			portStr,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if c.Storage.Path == "" {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue, "config: storage.path must not be empty"))
	}

	validBackends := map[string]bool{"sqlite": true, "qdrant": true}
	if !validBackends[c.Storage.Vector.Backend] {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: storage.vector.backend must be one of [sqlite, qdrant], got %q",
			c.Storage.Vector.Backend,
		))
	}
	if c.Storage.Vector.Backend == "qdrant" && c.Storage.Vector.Qdrant.URL == "" {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: storage.vector.qdrant.url must be set when the qdrant backend is selected"))
	}

	return errs
}

func (c *Config) validateRouter() []error {
	var errs []error

	if c.Router.ScoreThreshold < 0 || c.Router.ScoreThreshold > 1 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: router.score_threshold must be between 0 and 1, got %g",
			c.Router.ScoreThreshold,
		))
	}
	if c.Router.GapThreshold < 0 || c.Router.GapThreshold > 1 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: router.gap_threshold must be between 0 and 1, got %g",
			c.Router.GapThreshold,
		))
	}
	if c.Router.Limit <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: router.limit must be greater than 0, got %d",
			c.Router.Limit,
		))
	}
	if c.Router.KeywordLimit <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: router.keyword_limit must be greater than 0, got %d",
			c.Router.KeywordLimit,
		))
	}

	return errs
}

func (c *Config) validateCompression() []error {
	var errs []error

	validStrategies := map[string]bool{"truncate": true, "summarize": true, "hybrid": true}
	if !validStrategies[c.Compression.Strategy] {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: compression.strategy must be one of [truncate, summarize, hybrid], got %q",
			c.Compression.Strategy,
		))
	}
	if c.Compression.MaxTokens <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: compression.max_tokens must be greater than 0, got %d",
			c.Compression.MaxTokens,
		))
	}

	return errs
}

func (c *Config) validateBreaker() []error {
	var errs []error

	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: breaker.failure_threshold must be greater than 0, got %d",
			c.Breaker.FailureThreshold,
		))
	}
	if c.Breaker.ResetTimeoutSeconds <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: breaker.reset_timeout_seconds must be greater than 0, got %d",
			c.Breaker.ResetTimeoutSeconds,
		))
	}
	if c.Breaker.SuccessThreshold <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: breaker.success_threshold must be greater than 0, got %d",
			c.Breaker.SuccessThreshold,
		))
	}

	return errs
}

func (c *Config) validateGC() []error {
	var errs []error

	if c.GC.MaxSolutions <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: gc.max_solutions must be greater than 0, got %d",
			c.GC.MaxSolutions,
		))
	}
	if c.GC.MaxAgeDays <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: gc.max_age_days must be greater than 0, got %d",
			c.GC.MaxAgeDays,
		))
	}
	if c.GC.MinValueScore < 0 || c.GC.MinValueScore > 1 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: gc.min_value_score must be between 0 and 1, got %g",
			c.GC.MinValueScore,
		))
	}
	if c.GC.IntervalSeconds <= 0 {
		errs = append(errs, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"config: gc.interval_seconds must be greater than 0, got %d",
			c.GC.IntervalSeconds,
		))
	}

	return errs
}
