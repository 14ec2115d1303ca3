// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCRunCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/gc/run", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"expired":12,"pruned":3,"duplicates":1,"orphans":7}`))
	}))
	defer srv.Close()

	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	defer func() { defaultHTTPClient = old }()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"gc", "run", "--address", strings.TrimPrefix(srv.URL, "http://")})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "expired:    12")
	assert.Contains(t, buf.String(), "orphans:    7")
}

func TestGCStatsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v1/gc/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count":5000,"avg_value":0.62,"oldest_at":"2026-01-03T00:00:00Z","size_bytes":1048576,"max_entries":10000,"utilization":0.5}`))
	}))
	defer srv.Close()

	old := defaultHTTPClient
	defaultHTTPClient = srv.Client()
	defer func() { defaultHTTPClient = old }()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"gc", "stats", "--address", strings.TrimPrefix(srv.URL, "http://")})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "5000 / 10000")
	assert.Contains(t, buf.String(), "50% full")
	assert.Contains(t, buf.String(), "avg value:   0.62")
	assert.Contains(t, buf.String(), "2026-01-03")
}

func TestGCCommand_EngineNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"gc", "stats", "--address", addr})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "not running")
}
