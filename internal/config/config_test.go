// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/recall-dev/recall/internal/config"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.Vector.Backend)
	assert.Equal(t, "all-minilm:l6-v2", cfg.Embedding.Model)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 60, cfg.Breaker.ResetTimeoutSeconds)
	assert.InDelta(t, 0.4, cfg.Router.GapThreshold, 1e-9)
	assert.Equal(t, "hybrid", cfg.Compression.Strategy)
	assert.Equal(t, 10000, cfg.GC.MaxSolutions)
	assert.Equal(t, 3600, cfg.GC.IntervalSeconds)
	assert.Equal(t, 7*24*3600, cfg.Embedding.Cache.TTLSeconds)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "recall.yaml")

	content := `
server:
  listen: "0.0.0.0:9999"
storage:
  vector:
    backend: "qdrant"
    qdrant:
      url: "http://localhost:6333"
gc:
  max_solutions: 500
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Listen)
	assert.Equal(t, "qdrant", cfg.Storage.Vector.Backend)
	assert.Equal(t, "http://localhost:6333", cfg.Storage.Vector.Qdrant.URL)
	assert.Equal(t, 500, cfg.GC.MaxSolutions)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RECALL_SERVER_LISTEN", "10.0.0.1:8080")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Server.Listen)
}

func TestLoad_InvalidListen(t *testing.T) {
	t.Setenv("RECALL_SERVER_LISTEN", "not-an-address")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.listen")
}

func TestLoad_QdrantWithoutURL(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "recall.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  vector:\n    backend: qdrant\n"), 0o644))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant.url")
}

func TestLoad_InvalidStrategy(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "recall.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("compression:\n  strategy: shorten\n"), 0o644))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compression.strategy")
}

func TestLoad_CollectsAllValidationErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "recall.yaml")
	content := `
compression:
  strategy: shorten
gc:
  max_age_days: -1
breaker:
  failure_threshold: 0
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "compression.strategy")
	assert.Contains(t, msg, "gc.max_age_days")
	assert.Contains(t, msg, "breaker.failure_threshold")
}

func TestDefaultConfigYAMLIsLoadable(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "recall.yaml")
	require.NoError(t, os.WriteFile(cfgPath, config.DefaultConfigYAML, 0o600))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Listen)
	assert.True(t, strings.HasPrefix(cfg.Embedding.Cache.KeyPrefix, "recall:"))
}

func TestDefaultConfigYAMLStructure(t *testing.T) {
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(config.DefaultConfigYAML, &doc))

	for _, section := range []string{"server", "storage", "embedding", "breaker", "router", "compression", "backends", "gc"} {
		assert.Contains(t, doc, section, "default config should document the %q section", section)
	}
}
