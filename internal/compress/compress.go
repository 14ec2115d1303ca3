// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

// Package compress fits retrieved context into a token budget before it is
// inserted into a language-model prompt.
package compress

import (
	"fmt"
	"sort"
	"strings"

	"github.com/recall-dev/recall/internal/store"
)

// Strategy selects how items are reduced to fit the budget.
type Strategy string

const (
	// StrategyTruncate keeps full item texts greedily until the budget
	// runs out, truncating the last item that would overflow.
	StrategyTruncate Strategy = "truncate"
	// StrategySummarize reduces each item to its key sentences before
	// the greedy fill.
	StrategySummarize Strategy = "summarize"
	// StrategyHybrid keeps the top-ranked items whole, summarizes the
	// middle, and admits the tail only when the budget allows.
	StrategyHybrid Strategy = "hybrid"
)

// minPartialBudget is the smallest remaining budget (in tokens) worth
// spending on a truncated fragment of the next item.
const minPartialBudget = 50

// Result is the outcome of compressing a set of items.
type Result struct {
	Text         string
	UsedIDs      []string
	ActualTokens int
	Original     int
	Retained     int
}

// EstimateTokens approximates the token count of text as len/4. A fixed
// heuristic, not a real tokenizer; the budget contract tolerates the
// imprecision because compression is advisory.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// ToBudget compresses items into at most maxTokens, honoring the given
// strategy. Items are ranked by descending relevance score first. The
// returned ActualTokens can exceed maxTokens by at most the final
// partial-fit fragment.
func ToBudget(items []store.SearchResult, maxTokens int, strategy Strategy) Result {
	if len(items) == 0 || maxTokens <= 0 {
		return Result{Original: len(items)}
	}

	ranked := make([]store.SearchResult, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	var candidates []candidate
	switch strategy {
	case StrategyTruncate:
		candidates = truncateCandidates(ranked)
	case StrategySummarize:
		candidates = summarizeCandidates(ranked)
	default:
		candidates = hybridCandidates(ranked, maxTokens)
	}

	return greedyFill(candidates, maxTokens, len(items))
}

// candidate is one item's text prepared by a strategy, in rank order.
type candidate struct {
	id   string
	text string
	// budgetGate, when positive, skips the candidate once the running
	// usage reaches that many tokens. Used by the hybrid bottom tier.
	budgetGate int
}

func truncateCandidates(ranked []store.SearchResult) []candidate {
	out := make([]candidate, 0, len(ranked))
	for _, item := range ranked {
		out = append(out, candidate{id: item.ID, text: item.Text})
	}
	return out
}

func summarizeCandidates(ranked []store.SearchResult) []candidate {
	out := make([]candidate, 0, len(ranked))
	for _, item := range ranked {
		out = append(out, candidate{id: item.ID, text: keySentences(item.Text, 3)})
	}
	return out
}

// hybridCandidates partitions ranked items into top 30% (cleaned full
// text), middle 40% (2 key sentences), bottom 30% (1 key sentence, gated
// behind 80% budget usage).
func hybridCandidates(ranked []store.SearchResult, maxTokens int) []candidate {
	n := len(ranked)
	topEnd := (n*3 + 9) / 10 // ceil(0.3n)
	midEnd := topEnd + (n*4+9)/10
	if midEnd > n {
		midEnd = n
	}
	gate := maxTokens * 8 / 10

	out := make([]candidate, 0, n)
	for i, item := range ranked {
		switch {
		case i < topEnd:
			out = append(out, candidate{id: item.ID, text: cleanText(item.Text)})
		case i < midEnd:
			out = append(out, candidate{id: item.ID, text: keySentences(item.Text, 2)})
		default:
			out = append(out, candidate{id: item.ID, text: keySentences(item.Text, 1), budgetGate: gate})
		}
	}
	return out
}

// greedyFill appends candidate texts while the running token estimate
// stays under budget. When a candidate would overflow and more than
// minPartialBudget tokens remain, a truncated fragment of that candidate
// is appended and the fill stops.
func greedyFill(candidates []candidate, maxTokens, original int) Result {
	var parts []string
	var usedIDs []string
	used := 0

	for _, c := range candidates {
		if c.text == "" {
			continue
		}
		if c.budgetGate > 0 && used >= c.budgetGate {
			continue
		}

		tokens := EstimateTokens(c.text)
		if used+tokens <= maxTokens {
			parts = append(parts, c.text)
			usedIDs = append(usedIDs, c.id)
			used += tokens
			continue
		}

		remaining := maxTokens - used
		if remaining > minPartialBudget {
			fragment := truncateToTokens(c.text, remaining)
			if fragment != "" {
				parts = append(parts, fragment)
				usedIDs = append(usedIDs, c.id)
				used += EstimateTokens(fragment)
			}
		}
		break
	}

	return Result{
		Text:         strings.Join(parts, "\n\n"),
		UsedIDs:      usedIDs,
		ActualTokens: used,
		Original:     original,
		Retained:     len(usedIDs),
	}
}

// truncateToTokens cuts text to roughly budget tokens, preferring the last
// sentence or line boundary when that retains at least 70% of the
// available characters, else a hard character cut with an ellipsis.
func truncateToTokens(text string, budget int) string {
	maxChars := budget * 4
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]

	boundary := lastBoundary(cut)
	if boundary >= (maxChars*7)/10 {
		return strings.TrimSpace(cut[:boundary])
	}
	return strings.TrimSpace(cut) + "..."
}

// lastBoundary returns the index just past the last sentence or line
// boundary in s, or -1 when none exists.
func lastBoundary(s string) int {
	best := -1
	for _, sep := range []string{". ", ".\n", "!\n", "! ", "?\n", "? ", "\n"} {
		if idx := strings.LastIndex(s, sep); idx >= 0 && idx+1 > best {
			best = idx + 1
		}
	}
	return best
}

// cleanText collapses whitespace runs and trims each line.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// FormatCompressed prepends a header reporting compression decisions, so
// the consuming model can see what was kept and why.
func FormatCompressed(r Result, maxTokens int) string {
	utilization := 0.0
	if maxTokens > 0 {
		utilization = float64(r.ActualTokens) / float64(maxTokens) * 100
	}
	header := fmt.Sprintf(
		"[Context: %d of %d items retained, %d/%d tokens used (%.0f%% of budget)]",
		r.Retained, r.Original, r.ActualTokens, maxTokens, utilization,
	)
	if r.Text == "" {
		return header
	}
	return header + "\n\n" + r.Text
}
