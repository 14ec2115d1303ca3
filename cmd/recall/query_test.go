// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-dev/recall/internal/router"
	"github.com/recall-dev/recall/internal/store"
)

func TestQueryCommand_PrintsResults(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		result := router.Result{
			Route:         router.RouteHybrid,
			InteractionID: "int-1",
			LatencyMS:     12,
			Results: []store.SearchResult{
				{ID: "a", Score: 0.91, Text: "restart the indexer with --resume"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(result))
	}))
	defer srv.Close()

	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	defer func() { defaultHTTPClient = old }()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"query", "--address", strings.TrimPrefix(srv.URL, "http://"), "how", "to", "restart"})

	require.NoError(t, root.Execute())

	assert.Equal(t, "how to restart", gotBody["query"])
	assert.Contains(t, buf.String(), "route: hybrid")
	assert.Contains(t, buf.String(), "restart the indexer")
	assert.Contains(t, buf.String(), "0.910")
}

func TestQueryCommand_ForwardsFlags(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"route":"semantic","interaction_id":"int-2"}`))
	}))
	defer srv.Close()

	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	defer func() { defaultHTTPClient = old }()

	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetArgs([]string{
		"query", "--address", strings.TrimPrefix(srv.URL, "http://"),
		"--mode", "semantic", "--generate", "--limit", "3", "--remote",
		"flaky test isolation",
	})

	require.NoError(t, root.Execute())

	assert.Equal(t, "semantic", gotBody["mode"])
	assert.Equal(t, true, gotBody["generate"])
	assert.Equal(t, float64(3), gotBody["limit"])
	assert.Equal(t, true, gotBody["force_remote"])
	assert.NotContains(t, gotBody, "prefer_local")
}

func TestQueryCommand_GeneratedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		result := router.Result{
			Route:         router.RouteHybrid,
			Response:      "Run the migration with --dry-run first.",
			Generated:     true,
			InteractionID: "int-3",
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(result))
	}))
	defer srv.Close()

	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	defer func() { defaultHTTPClient = old }()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"query", "--address", strings.TrimPrefix(srv.URL, "http://"), "--generate", "migrate"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Run the migration with --dry-run first.")
}

func TestQueryCommand_JSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"route":"keyword","interaction_id":"int-4","gap_recorded":true}`))
	}))
	defer srv.Close()

	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	defer func() { defaultHTTPClient = old }()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"query", "--address", strings.TrimPrefix(srv.URL, "http://"), "--json", "lint"})

	require.NoError(t, root.Execute())

	var decoded router.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, router.RouteKeyword, decoded.Route)
	assert.True(t, decoded.GapRecorded)
}

func TestQueryCommand_EngineNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"query", "--address", addr, "anything"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "not running")
}
