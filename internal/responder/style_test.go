package responder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lewisedginton/sdr_chatbot/internal/intent"
)

func TestStyleFor(t *testing.T) {
	assert.Equal(t, 0.4, StyleFor(intent.Pricing).Directness)
	assert.Equal(t, 0.9, StyleFor(intent.Interest).Warmth)
	assert.Equal(t, defaultStyle, StyleFor(intent.Farewell))
	assert.Equal(t, defaultStyle, StyleFor(intent.General))
}

func TestApplyFilters(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		style Style
		want  string
	}{
		{
			name:  "warmth prepends starter",
			text:  "Tudo certo.",
			style: Style{Warmth: 0.8, Curiosity: 0.5, Directness: 0.6},
			want:  "Fico feliz em ajudar! Tudo certo.",
		},
		{
			name:  "warmth keeps existing starter",
			text:  "fico feliz em ajudar! Tudo certo.",
			style: Style{Warmth: 0.8, Curiosity: 0.5, Directness: 0.6},
			want:  "fico feliz em ajudar! Tudo certo.",
		},
		{
			name:  "curiosity appends question",
			text:  "Tudo certo.",
			style: Style{Warmth: 0.5, Curiosity: 0.9, Directness: 0.6},
			want:  "Tudo certo. Gostaria de saber mais sobre isso?",
		},
		{
			name:  "curiosity skips text with question",
			text:  "Tudo certo?",
			style: Style{Warmth: 0.5, Curiosity: 0.9, Directness: 0.6},
			want:  "Tudo certo?",
		},
		{
			name:  "low directness softens imperative",
			text:  "Vamos marcar amanhã.",
			style: Style{Warmth: 0.5, Curiosity: 0.5, Directness: 0.4},
			want:  "Uma possibilidade seria vamos marcar amanhã.",
		},
		{
			name:  "low directness leaves other openings",
			text:  "Podemos marcar amanhã.",
			style: Style{Warmth: 0.5, Curiosity: 0.5, Directness: 0.4},
			want:  "Podemos marcar amanhã.",
		},
		{
			name:  "thresholds are exclusive",
			text:  "Vamos marcar.",
			style: Style{Warmth: 0.7, Curiosity: 0.7, Directness: 0.5},
			want:  "Vamos marcar.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyFilters(tt.text, tt.style, fixedRand(1)))
		})
	}
}
