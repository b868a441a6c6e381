package memory_service //nolint:revive // var-naming: using underscores for domain clarity

import (
	"strings"
	"unicode"
)

// extractWords lowercases text and splits it on whitespace and punctuation.
// Single-character words are dropped.
func extractWords(text string) map[string]struct{} {
	result := make(map[string]struct{})

	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) > 1 {
			result[word] = struct{}{}
		}
	}
	return result
}

// intersects reports whether two word sets share an element.
func intersects(m1, m2 map[string]struct{}) bool {
	if len(m1) == 0 || len(m2) == 0 {
		return false
	}
	if len(m1) > len(m2) {
		m1, m2 = m2, m1
	}
	for k := range m1 {
		if _, ok := m2[k]; ok {
			return true
		}
	}
	return false
}
