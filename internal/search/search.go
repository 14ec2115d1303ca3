// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

// Package search implements the retrieval strategies the router dispatches
// to: lexical, vector, hierarchical, and a merged hybrid of the first two.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/recall-dev/recall/internal/embedding"
	"github.com/recall-dev/recall/internal/store"
	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// DefaultCollection is the knowledge collection searched when none is
// configured.
const DefaultCollection = "solutions"

// HybridResult carries both raw per-strategy result sets and their merge,
// so callers can report the raw sets alongside the combined ranking.
type HybridResult struct {
	Keyword  []store.SearchResult
	Semantic []store.SearchResult
	Merged   []store.SearchResult
}

// Searcher is the retrieval collaborator consumed by the router.
type Searcher interface {
	Keyword(ctx context.Context, query string, limit int) ([]store.SearchResult, error)
	Semantic(ctx context.Context, query string, limit int, scoreThreshold float64) ([]store.SearchResult, error)
	Tree(ctx context.Context, query string, limit, keywordLimit int, scoreThreshold float64) ([]store.SearchResult, error)
	Hybrid(ctx context.Context, query string, limit, keywordLimit int, scoreThreshold float64) (*HybridResult, error)
}

// Compile-time interface check.
var _ Searcher = (*StoreSearcher)(nil)

// StoreSearcher implements Searcher over a solution store, a vector store,
// and an embedder.
type StoreSearcher struct {
	solutions  store.SolutionStore
	vectors    store.VectorStore
	embedder   embedding.Embedder
	collection string
	logger     *slog.Logger
}

// NewStoreSearcher wires the retrieval collaborator. The embedder is
// typically a CachedEmbedder so repeated queries skip the embedding
// service.
func NewStoreSearcher(solutions store.SolutionStore, vectors store.VectorStore, embedder embedding.Embedder) *StoreSearcher {
	return &StoreSearcher{
		solutions:  solutions,
		vectors:    vectors,
		embedder:   embedder,
		collection: DefaultCollection,
		logger:     slog.Default(),
	}
}

// Keyword runs lexical full-text search only.
func (s *StoreSearcher) Keyword(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	results, err := s.solutions.SearchKeyword(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].Collection == "" {
			results[i].Collection = s.collection
		}
	}
	return results, nil
}

// Semantic embeds the query and runs vector similarity search only.
func (s *StoreSearcher) Semantic(ctx context.Context, query string, limit int, scoreThreshold float64) ([]store.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, recallerr.Wrap(err, recallerr.CodeVectorSearchFailure, "embed query",
			recallerr.FieldCollection(s.collection))
	}

	hits, err := s.vectors.Search(ctx, vector, limit, scoreThreshold)
	if err != nil {
		return nil, err
	}

	results := make([]store.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, store.SearchResult{
			ID:         hit.ID,
			Collection: s.collection,
			Score:      hit.Score,
			Text:       metadataText(hit.Metadata),
			Payload:    hit.Metadata,
		})
	}
	return results, nil
}

// Tree runs a hierarchical two-stage search: a semantic shortlist first,
// then lexical refinement scoped by the shortlist's sources, merged with
// max-score-wins.
func (s *StoreSearcher) Tree(ctx context.Context, query string, limit, keywordLimit int, scoreThreshold float64) ([]store.SearchResult, error) {
	shortlist, err := s.Semantic(ctx, query, limit*2, scoreThreshold)
	if err != nil {
		return nil, err
	}

	refined, err := s.Keyword(ctx, query, keywordLimit)
	if err != nil {
		// The shortlist already answers the query; refinement is an
		// improvement, not a requirement.
		s.logger.Warn("tree refinement failed, returning shortlist", "error", err)
		refined = nil
	}

	merged := MergeByID(shortlist, refined)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Hybrid runs keyword and semantic search and merges by id.
func (s *StoreSearcher) Hybrid(ctx context.Context, query string, limit, keywordLimit int, scoreThreshold float64) (*HybridResult, error) {
	keyword, err := s.Keyword(ctx, query, keywordLimit)
	if err != nil {
		return nil, err
	}
	semantic, err := s.Semantic(ctx, query, limit, scoreThreshold)
	if err != nil {
		return nil, err
	}

	merged := MergeByID(keyword, semantic)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return &HybridResult{Keyword: keyword, Semantic: semantic, Merged: merged}, nil
}

// MergeByID combines result sets, keeping the highest score per id. The
// merge is re-ranked best-first.
func MergeByID(sets ...[]store.SearchResult) []store.SearchResult {
	byID := make(map[string]store.SearchResult)
	for _, set := range sets {
		for _, r := range set {
			if existing, ok := byID[r.ID]; !ok || r.Score > existing.Score {
				byID[r.ID] = r
			}
		}
	}

	merged := make([]store.SearchResult, 0, len(byID))
	for _, r := range byID {
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}

// BestScore returns the highest relevance score in results, or 0 when
// empty.
func BestScore(results []store.SearchResult) float64 {
	best := 0.0
	for _, r := range results {
		if r.Score > best {
			best = r.Score
		}
	}
	return best
}

// metadataText reassembles display text from vector metadata.
func metadataText(metadata map[string]any) string {
	queryText, _ := metadata["query_text"].(string)
	solution, _ := metadata["solution"].(string)
	switch {
	case queryText != "" && solution != "":
		return fmt.Sprintf("%s\n%s", queryText, solution)
	case solution != "":
		return solution
	default:
		return strings.TrimSpace(queryText)
	}
}
