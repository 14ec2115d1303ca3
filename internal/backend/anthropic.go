// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package backend

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// Compile-time interface check.
var _ Completer = (*AnthropicBackend)(nil)

// AnthropicBackend implements Completer using the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropicsdk.Client
	model  string
}

// NewAnthropicBackend creates an Anthropic-backed Completer.
func NewAnthropicBackend(apiKey, model string) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, recallerr.New(recallerr.CodeConfigValidateInvalidValue, "anthropic: missing api key")
	}
	return &AnthropicBackend{
		client: anthropicsdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

func (b *AnthropicBackend) Kind() Kind { return KindRemote }

func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (*Completion, error) {
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()

	model := req.Model
	if model == "" {
		model = b.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		Messages:  convertAnthropicMessages(req.Messages),
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(req.Temperature)
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeBackendUpstreamFailure, "anthropic completion",
			recallerr.FieldBackend(b.Name()))
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &Completion{
		Text: text,
		Usage: Usage{
			InputTokens:     int(resp.Usage.InputTokens),
			OutputTokens:    int(resp.Usage.OutputTokens),
			CacheReadTokens: int(resp.Usage.CacheReadInputTokens),
		},
	}, nil
}

func convertAnthropicMessages(msgs []Message) []anthropicsdk.MessageParam {
	var result []anthropicsdk.MessageParam
	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			result = append(result, anthropicsdk.NewAssistantMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case RoleSystem:
			// System content rides the top-level system param.
			continue
		default:
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		}
	}
	return result
}
