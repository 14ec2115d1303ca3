// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/recall-dev/recall/internal/backend"
	"github.com/recall-dev/recall/internal/compress"
)

// promptPrefix is static and leads every generation prompt so backends
// with prompt caching can reuse it across requests.
const promptPrefix = `You are a retrieval-grounded assistant. Answer the user's query using only the context below. If the context does not contain the answer, say so.`

const expansionPrompt = `Rewrite the following search query as up to 3 alternative phrasings that preserve its meaning. Reply with one phrasing per line and nothing else.

Query: %s`

// maybeExpand asks a language model for paraphrases of the query and
// substitutes the first one. Only semantic and hybrid routes are
// expanded. Any failure, including timeout, is swallowed and the
// original query is used.
func (r *Router) maybeExpand(ctx context.Context, query string, route Route) string {
	if !r.settings.ExpansionEnabled || r.selector == nil {
		return query
	}
	if route != RouteSemantic && route != RouteHybrid {
		return query
	}

	completer, err := r.selector.Pick(true, false)
	if err != nil {
		return query
	}

	ctx, cancel := context.WithTimeout(ctx, r.settings.ExpansionTimeout)
	defer cancel()

	completion, err := completer.Complete(ctx, backend.Request{
		Messages:    []backend.Message{{Role: backend.RoleUser, Content: fmt.Sprintf(expansionPrompt, query)}},
		Temperature: 0.3,
		MaxTokens:   128,
		Timeout:     r.settings.ExpansionTimeout,
	})
	if err != nil {
		r.logger.Debug("query expansion skipped", "error", err)
		return query
	}

	if expanded := firstParaphrase(completion.Text); expanded != "" {
		return expanded
	}
	return query
}

// firstParaphrase extracts the first usable line, stripping list
// numbering and surrounding quotes.
func firstParaphrase(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.-) ")
		line = strings.Trim(line, `"'`)
		if line != "" {
			return line
		}
	}
	return ""
}

// generate runs step 5: build the prompt, pick a backend, call it through
// that backend's circuit breaker. Failures are logged and the discovery
// summary already in the result stands as the response.
func (r *Router) generate(ctx context.Context, req Request, result *Result) {
	if r.selector == nil || !r.selector.Available() {
		return
	}

	completer, err := r.selector.Pick(req.PreferLocal || !req.ForceRemote, req.ForceRemote)
	if err != nil {
		r.logger.Warn("no backend available for generation", "error", err)
		return
	}

	prompt := r.buildPrompt(req.Query, result)

	var completion *backend.Completion
	call := func(ctx context.Context) error {
		var callErr error
		completion, callErr = completer.Complete(ctx, backend.Request{
			Messages:     []backend.Message{{Role: backend.RoleUser, Content: prompt}},
			SystemPrompt: promptPrefix,
			Temperature:  r.settings.GenTemperature,
			MaxTokens:    r.settings.GenMaxTokens,
			Timeout:      r.settings.GenTimeout,
		})
		return callErr
	}

	if r.breakers != nil {
		err = r.breakers.Get(completer.Name()).Do(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		r.logger.Warn("generation failed, keeping retrieval summary",
			"backend", completer.Name(), "error", err)
		return
	}

	result.Response = completion.Text
	result.Generated = true
	result.CachedTokens = completion.Usage.CacheReadTokens
}

// buildPrompt assembles prefix + query + context block, compressing the
// context to the configured budget when enabled.
func (r *Router) buildPrompt(query string, result *Result) string {
	contextBlock := result.Discovery
	if len(result.Results) > 0 {
		if r.settings.CompressionEnabled {
			compressed := compress.ToBudget(result.Results, r.settings.CompressionBudget, r.settings.CompressionStrategy)
			contextBlock = compress.FormatCompressed(compressed, r.settings.CompressionBudget)
		} else {
			var b strings.Builder
			for _, item := range result.Results {
				fmt.Fprintf(&b, "[%s score=%.2f]\n%s\n\n", item.ID, item.Score, item.Text)
			}
			contextBlock = strings.TrimSpace(b.String())
		}
	}

	return fmt.Sprintf("Query: %s\n\nContext:\n%s", query, contextBlock)
}
