// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

// Package embedding provides the embedding-service client and the
// model-scoped cache placed in front of it.
package embedding

import "context"

// Embedder turns text into a fixed-length numeric vector. The embedding
// service is consumed as a black box; implementations must return vectors
// of exactly Dimension() length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}
