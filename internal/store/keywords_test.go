package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"drops short tokens and stop words", "Qual o preço do plano para mim?", []string{"Qual", "preço", "plano", "mim?"}},
		{"keeps original case", "Quero Demonstração Hoje", []string{"Quero", "Demonstração", "Hoje"}},
		{"stop words longer than two runes", "Isso TAMBÉM está muito caro", []string{"caro"}},
		{"counts runes not bytes", "são há ação", []string{"são", "ação"}},
		{"nothing left", "o a de é", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeywords(tt.in))
		})
	}
}

func TestIndexKeywordsLowerCases(t *testing.T) {
	assert.Equal(t, []string{"quero", "demonstração", "hoje"}, IndexKeywords("Quero uma Demonstração Hoje"))
	assert.Nil(t, IndexKeywords("O A de"))
}

func TestExtractKeywordsCapsAtTen(t *testing.T) {
	in := strings.Repeat("palavra ", 15)
	assert.Len(t, ExtractKeywords(in), MaxKeywords)
}

func TestHashes(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", ContentHash("hello"))
	assert.Equal(t, ContentHash("ab"), TurnHash("a", "b"))
	assert.NotEqual(t, TurnHash("a", "b"), TurnHash("a", "c"))
}
