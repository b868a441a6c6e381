package responder

import (
	"strings"

	"github.com/lewisedginton/sdr_chatbot/internal/intent"
)

// Style weights shape the post-processing of template responses. Each
// weight is in [0, 1].
type Style struct {
	Warmth          float64
	Professionalism float64
	Curiosity       float64
	Directness      float64
}

const (
	warmthThreshold     = 0.7
	curiosityThreshold  = 0.7
	directnessThreshold = 0.5
)

var styles = map[intent.Label]Style{
	intent.Greeting: {Warmth: 0.8, Professionalism: 0.9, Curiosity: 0.7, Directness: 0.6},
	intent.Product:  {Warmth: 0.6, Professionalism: 0.9, Curiosity: 0.9, Directness: 0.7},
	intent.Pricing:  {Warmth: 0.5, Professionalism: 0.9, Curiosity: 0.8, Directness: 0.4},
	intent.Interest: {Warmth: 0.9, Professionalism: 0.8, Curiosity: 0.8, Directness: 0.8},
}

var defaultStyle = Style{Warmth: 0.6, Professionalism: 0.8, Curiosity: 0.6, Directness: 0.6}

// StyleFor returns the weights for label.
func StyleFor(label intent.Label) Style {
	if s, ok := styles[label]; ok {
		return s
	}
	return defaultStyle
}

var (
	warmStarters = []string{
		"Que bom falar com você! ",
		"Fico feliz em ajudar! ",
		"É um prazer conversar! ",
	}
	curiousEndings = []string{
		" Como está funcionando atualmente?",
		" Gostaria de saber mais sobre isso?",
		" Que tal conversarmos sobre suas necessidades?",
	}
	softeners = []string{
		"Talvez possamos ",
		"Uma possibilidade seria ",
		"Posso sugerir que ",
	}
	imperativeOpenings = []string{"Vamos", "Faça", "Você deve"}
)

// ApplyFilters runs the warmth, curiosity and directness filters in that order.
func ApplyFilters(text string, s Style, rnd Rand) string {
	if s.Warmth > warmthThreshold {
		text = addWarmth(text, rnd)
	}
	if s.Curiosity > curiosityThreshold {
		text = addCuriosity(text, rnd)
	}
	if s.Directness < directnessThreshold {
		text = softenDirectness(text, rnd)
	}
	return text
}

func addWarmth(text string, rnd Rand) string {
	lower := strings.ToLower(text)
	for _, starter := range warmStarters {
		if strings.Contains(lower, strings.ToLower(starter)) {
			return text
		}
	}
	return pick(rnd, warmStarters) + text
}

func addCuriosity(text string, rnd Rand) string {
	if strings.Contains(text, "?") {
		return text
	}
	return text + pick(rnd, curiousEndings)
}

func softenDirectness(text string, rnd Rand) string {
	for _, opening := range imperativeOpenings {
		if strings.HasPrefix(text, opening) {
			return pick(rnd, softeners) + strings.ToLower(text)
		}
	}
	return text
}
