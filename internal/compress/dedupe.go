// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package compress

import (
	"strings"

	"github.com/recall-dev/recall/internal/store"
)

// DefaultDuplicateThreshold is the Jaccard similarity at or above which
// two items are considered duplicates.
const DefaultDuplicateThreshold = 0.85

// RemoveDuplicates keeps items in order, dropping any whose word-set
// Jaccard similarity to an already-kept item's text is >= threshold.
// Quadratic in the number of items; fine at context-window scale.
func RemoveDuplicates(items []store.SearchResult, threshold float64) []store.SearchResult {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}

	kept := make([]store.SearchResult, 0, len(items))
	keptSets := make([]map[string]struct{}, 0, len(items))

	for _, item := range items {
		set := wordSet(item.Text)
		duplicate := false
		for _, existing := range keptSets {
			if jaccard(set, existing) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, item)
		keptSets = append(keptSets, set)
	}
	return kept
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		set[word] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for word := range a {
		if _, ok := b[word]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
