// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/recall-dev/recall/internal/store"
	recallerr "github.com/recall-dev/recall/pkg/errors"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultScrollPage = 1000
)

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// VectorStore implements store.VectorStore against the Qdrant HTTP API.
type VectorStore struct {
	client     *http.Client
	baseURL    string
	collection string
	dimension  int
	apiKey     string
}

// Config holds Qdrant connection settings.
type Config struct {
	URL        string
	Collection string
	Dimension  int
	APIKey     string
	Timeout    time.Duration
}

// New creates a VectorStore and ensures the collection exists.
func New(ctx context.Context, cfg Config) (*VectorStore, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, recallerr.New(recallerr.CodeConfigValidateInvalidValue, "qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, recallerr.New(recallerr.CodeConfigValidateInvalidValue, "qdrant collection is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	v := &VectorStore{
		client:     &http.Client{Timeout: timeout},
		baseURL:    base,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		apiKey:     cfg.APIKey,
	}
	if err := v.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *VectorStore) ensureCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     v.dimension,
			"distance": "Cosine",
		},
	}
	return v.doRequest(ctx, http.MethodPut, "/collections/"+v.collection, body, nil)
}

// Store upserts one point with its payload.
func (v *VectorStore) Store(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	if len(embedding) != v.dimension {
		return recallerr.Errorf(recallerr.CodeStoreInvalidInput,
			"qdrant: vector %s dimension mismatch: got %d, want %d", id, len(embedding), v.dimension)
	}
	payload := metadata
	if payload == nil {
		payload = map[string]any{}
	}
	body := map[string]any{
		"points": []any{
			map[string]any{"id": id, "vector": embedding, "payload": payload},
		},
	}
	return v.doRequest(ctx, http.MethodPut, "/collections/"+v.collection+"/points", body, nil)
}

type searchResult struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search performs a top-K similarity search with a server-side score threshold.
func (v *VectorStore) Search(ctx context.Context, query []float32, k int, scoreThreshold float64) ([]store.VectorResult, error) {
	if len(query) != v.dimension {
		return nil, recallerr.New(recallerr.CodeStoreInvalidInput, "qdrant: query dimension mismatch")
	}
	request := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		request["score_threshold"] = scoreThreshold
	}

	var response struct {
		Result []searchResult `json:"result"`
	}
	if err := v.doRequest(ctx, http.MethodPost, "/collections/"+v.collection+"/points/search", request, &response); err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeVectorSearchFailure, "qdrant search",
			recallerr.FieldCollection(v.collection))
	}

	results := make([]store.VectorResult, 0, len(response.Result))
	for _, res := range response.Result {
		results = append(results, store.VectorResult{
			ID:       fmt.Sprint(res.ID),
			Score:    res.Score,
			Metadata: res.Payload,
		})
	}
	return results, nil
}

// ScrollIDs pages through the whole collection and returns every point id.
func (v *VectorStore) ScrollIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var offset any

	for {
		request := map[string]any{
			"limit":        defaultScrollPage,
			"with_payload": false,
			"with_vector":  false,
		}
		if offset != nil {
			request["offset"] = offset
		}

		var response struct {
			Result struct {
				Points []struct {
					ID any `json:"id"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := v.doRequest(ctx, http.MethodPost, "/collections/"+v.collection+"/points/scroll", request, &response); err != nil {
			return nil, recallerr.Wrap(err, recallerr.CodeVectorScrollFailure, "qdrant scroll",
				recallerr.FieldCollection(v.collection))
		}

		for _, p := range response.Result.Points {
			ids = append(ids, fmt.Sprint(p.ID))
		}
		if response.Result.NextPageOffset == nil {
			return ids, nil
		}
		offset = response.Result.NextPageOffset
	}
}

// Delete removes points by id.
func (v *VectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	request := map[string]any{"points": ids}
	err := v.doRequest(ctx, http.MethodPost, "/collections/"+v.collection+"/points/delete", request, nil)
	if err != nil {
		return recallerr.Wrap(err, recallerr.CodeVectorDeleteFailure, "qdrant delete",
			recallerr.FieldCollection(v.collection))
	}
	return nil
}

// Close is a no-op; the HTTP client holds no persistent connections worth
// tearing down explicitly.
func (v *VectorStore) Close() error {
	return nil
}

func (v *VectorStore) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var buf *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: marshal request: %w", err)
		}
		buf = bytes.NewReader(payload)
	} else {
		buf = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("qdrant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("api-key", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("qdrant: read response: %w", readErr)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(payload, &apiErr); err != nil {
			return fmt.Errorf("qdrant: request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("qdrant: %s (%d): %s", apiErr.Error, resp.StatusCode, apiErr.Status)
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return nil
}
