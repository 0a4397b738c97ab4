// internal/matching/keywords.go
package matching

import (
	"strings"
	"unicode/utf8"
)

// Tier weights for a single keyword pairing, strongest first.
const (
	weightExact     = 20
	weightSubstring = 15
	weightBigram    = 8

	minSubstringRunes = 3
	maxScore          = 100
)

// KeywordResult is the outcome of comparing two keyword lists.
type KeywordResult struct {
	Score           int      `json:"score"`
	MatchedKeywords []string `json:"matchedKeywords"`
}

// KeywordSimilarity scores how well the keywords in a are covered by the keywords in b.
// Each keyword of a contributes only its best pairing weight, so the result is directional:
// KeywordSimilarity(a, b) and KeywordSimilarity(b, a) generally differ.
func KeywordSimilarity(a, b string) KeywordResult {
	left := SplitKeywords(a)
	right := SplitKeywords(b)
	if len(left) == 0 || len(right) == 0 {
		return KeywordResult{Score: 0, MatchedKeywords: []string{}}
	}

	total := 0
	matched := make([]string, 0, len(left))
	seen := make(map[string]bool, len(left))

	for _, kw := range left {
		best := 0
		for _, other := range right {
			if w := pairWeight(kw, other); w > best {
				best = w
				if best == weightExact {
					break
				}
			}
		}
		if best == 0 {
			continue
		}
		total += best
		if !seen[kw] {
			seen[kw] = true
			matched = append(matched, kw)
		}
	}

	return KeywordResult{Score: clamp(total), MatchedKeywords: matched}
}

// SplitKeywords tokenizes a comma-separated keyword list: trimmed, lower-cased, empties dropped.
func SplitKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pairWeight(a, b string) int {
	if a == b {
		return weightExact
	}
	if utf8.RuneCountInString(a) >= minSubstringRunes && utf8.RuneCountInString(b) >= minSubstringRunes &&
		(strings.Contains(a, b) || strings.Contains(b, a)) {
		return weightSubstring
	}
	if sharesBigram(a, b) {
		return weightBigram
	}
	return 0
}

// sharesBigram reports whether any two-rune window of a occurs in b.
func sharesBigram(a, b string) bool {
	runes := []rune(a)
	for i := 0; i+1 < len(runes); i++ {
		if strings.Contains(b, string(runes[i:i+2])) {
			return true
		}
	}
	return false
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxScore {
		return maxScore
	}
	return v
}
