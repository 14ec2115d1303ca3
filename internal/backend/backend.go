// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

// Package backend provides chat-completion clients for the language-model
// services the router can dispatch to.
package backend

import (
	"context"
	"time"
)

// Kind distinguishes where a backend runs.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Role identifies the sender of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a chat-completion request.
type Message struct {
	Role    Role
	Content string
}

// Request is a single chat-completion call.
type Request struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	// Timeout bounds the whole call; implementations apply it via the
	// request context so a hung backend cannot stall the caller.
	Timeout time.Duration
}

// Usage tracks token consumption for one completion. CacheReadTokens is
// nonzero when the backend served part of the prompt from its prompt
// cache, which feeds cache-effectiveness telemetry.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
}

// Completion is a successful chat-completion response.
type Completion struct {
	Text  string
	Usage Usage
}

// Completer is the chat-completion interface every backend implements.
type Completer interface {
	Name() string
	Kind() Kind
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// withTimeout applies the request timeout to ctx when one is set.
func withTimeout(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		return context.WithTimeout(ctx, req.Timeout)
	}
	return context.WithCancel(ctx)
}
