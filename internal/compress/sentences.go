// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package compress

import (
	"sort"
	"strings"
	"unicode"
)

// actionKeywords mark sentences that describe a fix or concrete action.
var actionKeywords = []string{
	"fix", "fixed", "solve", "solved", "solution", "resolve", "resolved",
	"run", "install", "update", "upgrade", "set", "change", "configure",
	"add", "remove", "replace", "restart", "use", "enable", "disable",
}

// imperativeVerbs are leading words that signal an instruction.
var imperativeVerbs = []string{
	"run", "install", "set", "add", "remove", "use", "check", "update",
	"replace", "restart", "open", "edit", "create", "delete", "enable",
	"disable", "configure", "apply", "try",
}

// keySentences extracts up to max sentences from text, preferring ones
// that look like actionable content: 30-150 characters, fix-related
// keywords, capitalized starts, imperative leads. Original sentence order
// is preserved in the output.
func keySentences(text string, max int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) <= max {
		return strings.Join(sentences, " ")
	}

	type scored struct {
		index int
		score int
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		ranked = append(ranked, scored{index: i, score: sentenceScore(s)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	picked := ranked[:max]
	sort.Slice(picked, func(i, j int) bool { return picked[i].index < picked[j].index })

	out := make([]string, 0, max)
	for _, p := range picked {
		out = append(out, sentences[p.index])
	}
	return strings.Join(out, " ")
}

// sentenceScore ranks a sentence by the preference order: useful length
// first, then action keywords, then capitalization, then imperative lead.
func sentenceScore(s string) int {
	score := 0
	if n := len(s); n >= 30 && n <= 150 {
		score += 8
	}
	lower := strings.ToLower(s)
	for _, kw := range actionKeywords {
		if strings.Contains(lower, kw) {
			score += 4
			break
		}
	}
	runes := []rune(s)
	if len(runes) > 0 && unicode.IsUpper(runes[0]) {
		score += 2
	}
	if first := firstWord(lower); first != "" {
		for _, verb := range imperativeVerbs {
			if first == verb {
				score++
				break
			}
		}
	}
	return score
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,!?:;")
}

// splitSentences breaks text on sentence terminators and newlines,
// dropping empty fragments.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		current.Reset()
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()
	return sentences
}
