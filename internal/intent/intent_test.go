package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySingleIntent(t *testing.T) {
	tests := []struct {
		text string
		want Label
	}{
		{"Olá, bom dia", Greeting},
		{"BOA NOITE pessoal", Greeting},
		{"Que serviço vocês têm?", Product},
		{"Qual o preço?", Pricing},
		{"Quanto custa isso?", Pricing},
		{"Tenho interesse no plano", Interest},
		{"Pode me explicar melhor?", Question},
		{"Vamos agendar uma reunião", Scheduling},
		{"Achei muito caro", Objection},
		{"Valeu, tchau", Farewell},
		{"xyz", General},
		{"", General},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestClassifyFirstDeclaredWins(t *testing.T) {
	// greeting is declared before pricing
	assert.Equal(t, Greeting, Classify("Olá, qual o preço?"))
	// product before scheduling
	assert.Equal(t, Product, Classify("quero conversar sobre o produto"))
	// pricing before interest
	assert.Equal(t, Pricing, Classify("quero saber o valor"))
}

func TestClassifyIsSubstringMatch(t *testing.T) {
	// "oi" inside "noite" and "coisa" both count
	assert.Equal(t, Greeting, Classify("uma coisa"))
}

func TestRulesOrderIsFixed(t *testing.T) {
	want := []Label{Greeting, Product, Pricing, Interest, Question, Scheduling, Objection, Farewell, General}
	assert.Equal(t, want, Labels())

	copied := Rules()
	copied[0].Keywords[0] = "mutated"
	assert.Equal(t, "oi", Rules()[0].Keywords[0])
}

func TestParse(t *testing.T) {
	assert.Equal(t, Pricing, Parse(" PRECO "))
	assert.Equal(t, General, Parse("unknown"))
	assert.Equal(t, General, Parse(""))
}
