// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrEngineNotRunning indicates the engine refused the connection.
var ErrEngineNotRunning = errors.New("recall is not running (connection refused)")

// defaultHTTPClient is the package-level HTTP client used by engine commands.
// Overridden in tests via httptest. Generation requests can take a while on
// local models, so the timeout is generous.
var defaultHTTPClient = &http.Client{
	Timeout: 120 * time.Second,
}

// engineClient provides HTTP access to a running recall engine.
type engineClient struct {
	baseURL string
	http    *http.Client
}

// newEngineClient creates a client targeting the given host:port address.
func newEngineClient(addr string) *engineClient {
	return &engineClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// Returns ErrEngineNotRunning on connection refused.
func (c *engineClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return ErrEngineNotRunning
		}
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, dest)
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response into dest.
func (c *engineClient) postJSON(path string, body, dest any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", &buf)
	if err != nil {
		if isDialError(err) {
			return ErrEngineNotRunning
		}
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, dest)
}

func decodeResponse(resp *http.Response, dest any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(body))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
