// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

const (
	// DefaultOllamaModel is the embedding model that produces
	// 384-dimensional vectors.
	DefaultOllamaModel = "all-minilm:l6-v2"

	// DefaultOllamaDimension is the dimension for all-minilm:l6-v2.
	// This MUST match the vector store index dimension.
	DefaultOllamaDimension = 384

	defaultOllamaURL    = "http://localhost:11434"
	defaultEmbedTimeout = 30 * time.Second
)

// Compile-time check that OllamaEmbedder implements Embedder.
var _ Embedder = (*OllamaEmbedder)(nil)

// OllamaEmbedder implements Embedder against a local Ollama server's
// /api/embed endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	baseURL   string
	model     string
	dimension int
}

// NewOllamaEmbedder creates an Ollama embedding client. Empty model and
// zero dimension fall back to the all-minilm defaults; empty baseURL falls
// back to the standard local Ollama address.
func NewOllamaEmbedder(baseURL, model string, dimension int) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension == 0 {
		dimension = DefaultOllamaDimension
	}
	return &OllamaEmbedder{
		client:    &http.Client{Timeout: defaultEmbedTimeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		dimension: dimension,
	}
}

// Model returns the configured embedding model name.
func (e *OllamaEmbedder) Model() string { return e.model }

// Dimension returns the expected embedding dimension.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

// Embed generates an embedding vector for the given text. Returns an error
// if the server responds with a vector of the wrong dimension.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model": e.model,
		"input": text,
	})
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEmbedUpstreamFailure, "marshal embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEmbedUpstreamFailure, "build embed request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEmbedUpstreamFailure, "embed request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEmbedUpstreamFailure, "read embed response")
	}
	if resp.StatusCode >= 400 {
		return nil, recallerr.Errorf(recallerr.CodeEmbedUpstreamFailure,
			"embed request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeEmbedUpstreamFailure, "decode embed response")
	}
	if len(response.Embeddings) == 0 {
		return nil, recallerr.New(recallerr.CodeEmbedUpstreamFailure, "no embeddings returned")
	}

	vector := response.Embeddings[0]
	if len(vector) != e.dimension {
		return nil, recallerr.New(recallerr.CodeEmbedDimension,
			fmt.Sprintf("dimension mismatch: got %d, want %d (model: %s)", len(vector), e.dimension, e.model))
	}
	return vector, nil
}
