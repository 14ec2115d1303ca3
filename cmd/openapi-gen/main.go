// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

// Command openapi-gen writes the engine's OpenAPI spec to a file. Run it
// after changing any server route or request/response type.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/recall-dev/recall/internal/server"
	recallerr "github.com/recall-dev/recall/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeServerStartFailure, "creating server")
	}

	// Handlers are never invoked during spec generation, so the service
	// dependencies stay nil.
	srv.RegisterServices(&server.Services{})

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
