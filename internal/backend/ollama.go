// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// DefaultOllamaModel is the local generation model used when none is
// configured.
const DefaultOllamaModel = "llama3.2"

// Compile-time interface check.
var _ Completer = (*OllamaBackend)(nil)

// OllamaBackend implements Completer against a local Ollama server's
// /api/chat endpoint.
type OllamaBackend struct {
	client  *http.Client
	baseURL string
	model   string
}

// NewOllamaBackend creates a local Ollama Completer. The per-request
// timeout comes from Request.Timeout, so the HTTP client itself does not
// carry one.
func NewOllamaBackend(baseURL, model string) *OllamaBackend {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaBackend{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

func (b *OllamaBackend) Kind() Kind { return KindLocal }

func (b *OllamaBackend) Complete(ctx context.Context, req Request) (*Completion, error) {
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()

	model := req.Model
	if model == "" {
		model = b.model
	}

	type chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	payload, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
		"options":  options,
	})
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeBackendUpstreamFailure, "marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeBackendUpstreamFailure, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, recallerr.Wrap(err, recallerr.CodeBackendTimeout, "ollama completion timed out",
				recallerr.FieldBackend(b.Name()))
		}
		return nil, recallerr.Wrap(err, recallerr.CodeBackendUpstreamFailure, "ollama completion",
			recallerr.FieldBackend(b.Name()))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeBackendUpstreamFailure, "read chat response")
	}
	if resp.StatusCode >= 400 {
		return nil, recallerr.Errorf(recallerr.CodeBackendUpstreamFailure,
			"ollama chat failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int `json:"prompt_eval_count"`
		EvalCount       int `json:"eval_count"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeBackendUpstreamFailure, "decode chat response")
	}

	return &Completion{
		Text: response.Message.Content,
		Usage: Usage{
			InputTokens:  response.PromptEvalCount,
			OutputTokens: response.EvalCount,
		},
	}, nil
}
