// internal/textsim/textsim.go
package textsim

import (
	"strings"
	"unicode"
)

// Normalize lowercases a text and strips all whitespace so that bigram
// comparison ignores spacing and casing differences.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Bigrams returns the set of adjacent character pairs of the normalized text.
func Bigrams(text string) map[string]struct{} {
	runes := []rune(Normalize(text))
	set := make(map[string]struct{})
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

// Jaccard computes set overlap between two bigram sets. Two empty sets are
// considered identical.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	intersection := 0
	for k := range small {
		if _, ok := large[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// Similarity is the bigram Jaccard similarity of two raw texts.
func Similarity(a, b string) float64 {
	return Jaccard(Bigrams(a), Bigrams(b))
}

// SplitSentences breaks a text on sentence-ending punctuation, trimming
// whitespace and dropping empty fragments. It handles both ASCII and CJK
// terminators since agent answers arrive in mixed scripts.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？', ';', '；':
			flush()
		}
	}
	flush()

	return sentences
}

// Truncate cuts a text to at most max runes, appending an ellipsis when
// anything was dropped.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
