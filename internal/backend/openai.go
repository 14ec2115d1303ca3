// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package backend

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// Compile-time interface check.
var _ Completer = (*OpenAIBackend)(nil)

// OpenAIBackend implements Completer using the OpenAI Chat Completions API.
type OpenAIBackend struct {
	client openaisdk.Client
	model  string
}

// NewOpenAIBackend creates an OpenAI-backed Completer. baseURL is optional
// and useful for testing against a mock server.
func NewOpenAIBackend(apiKey, baseURL, model string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, recallerr.New(recallerr.CodeConfigValidateInvalidValue, "openai: missing api key")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIBackend{client: openaisdk.NewClient(opts...), model: model}, nil
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Kind() Kind { return KindRemote }

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (*Completion, error) {
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()

	model := req.Model
	if model == "" {
		model = b.model
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: convertOpenAIMessages(req),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeBackendUpstreamFailure, "openai completion",
			recallerr.FieldBackend(b.Name()))
	}
	if len(resp.Choices) == 0 {
		return nil, recallerr.New(recallerr.CodeBackendUpstreamFailure, "openai: empty choices",
			recallerr.FieldBackend(b.Name()))
	}

	return &Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:     int(resp.Usage.PromptTokens),
			OutputTokens:    int(resp.Usage.CompletionTokens),
			CacheReadTokens: int(resp.Usage.PromptTokensDetails.CachedTokens),
		},
	}, nil
}

func convertOpenAIMessages(req Request) []openaisdk.ChatCompletionMessageParamUnion {
	var result []openaisdk.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			result = append(result, openaisdk.AssistantMessage(msg.Content))
		case RoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		default:
			result = append(result, openaisdk.UserMessage(msg.Content))
		}
	}
	return result
}
