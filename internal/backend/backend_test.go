// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

func TestOllamaBackendComplete(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "hello back"},
			"prompt_eval_count": 12,
			"eval_count":        5,
		})
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "test-model")
	out, err := b.Complete(context.Background(), Request{
		Messages:     []Message{{Role: RoleUser, Content: "hello"}},
		SystemPrompt: "be brief",
		MaxTokens:    64,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello back", out.Text)
	assert.Equal(t, 12, out.Usage.InputTokens)
	assert.Equal(t, 5, out.Usage.OutputTokens)

	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, false, captured["stream"])
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOllamaBackendUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "")
	_, err := b.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeBackendUpstreamFailure))
}

func TestOllamaBackendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "")
	_, err := b.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Timeout:  20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeBackendTimeout))
}

type stubCompleter struct {
	name string
	kind Kind
}

func (s *stubCompleter) Name() string { return s.name }
func (s *stubCompleter) Kind() Kind   { return s.kind }
func (s *stubCompleter) Complete(context.Context, Request) (*Completion, error) {
	return &Completion{Text: s.name}, nil
}

func TestSelectorPrefersLocal(t *testing.T) {
	local := &stubCompleter{name: "local", kind: KindLocal}
	remote := &stubCompleter{name: "remote", kind: KindRemote}
	sel := NewSelector(local, remote)

	got, err := sel.Pick(true, false)
	require.NoError(t, err)
	assert.Same(t, local, got)

	got, err = sel.Pick(false, true)
	require.NoError(t, err)
	assert.Same(t, remote, got)
}

func TestSelectorForceRemoteFallsBackToLocal(t *testing.T) {
	local := &stubCompleter{name: "local", kind: KindLocal}
	sel := NewSelector(local, nil)

	got, err := sel.Pick(false, true)
	require.NoError(t, err)
	assert.Same(t, local, got)
}

func TestSelectorNoBackends(t *testing.T) {
	sel := NewSelector(nil, nil)
	_, err := sel.Pick(true, false)
	require.Error(t, err)
	assert.True(t, recallerr.HasCode(err, recallerr.CodeBackendNotFound))
	assert.False(t, sel.Available())
}
