// Package responder picks and personalises the reply text for a turn.
package responder

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/lewisedginton/sdr_chatbot/internal/intent"
	"github.com/lewisedginton/sdr_chatbot/internal/persona"
	"github.com/lewisedginton/sdr_chatbot/internal/prompt"
)

// InsightThreshold is the context length, in runes, above which an insight
// sentence is appended to template responses.
const InsightThreshold = 50

// ErrEmptyResponse is returned when a learned response has no text.
var ErrEmptyResponse = errors.New("empty response")

// Rand is the randomness source behind every choice the selector makes.
// Intn returns a value in [0, n).
type Rand interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.IntN(n) }

// DefaultRand is backed by the process-wide generator.
func DefaultRand() Rand { return globalRand{} }

// Source tells where a reply came from.
type Source string

const (
	SourceLearned  Source = "learned"
	SourceTemplate Source = "template"
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Input is what Select needs for one turn.
type Input struct {
	Intent intent.Label
	// Context is the assembled persona context.
	Context string
	// Similar holds stored turns, most recent first.
	Similar []prompt.Example
	Persona persona.Persona
}

// Choice is a selected reply.
type Choice struct {
	Text   string
	Source Source
}

// Selector chooses replies. The zero value is not usable; call New.
type Selector struct {
	rnd Rand
}

// New returns a Selector drawing from rnd, or from DefaultRand when rnd is nil.
func New(rnd Rand) *Selector {
	if rnd == nil {
		rnd = DefaultRand()
	}
	return &Selector{rnd: rnd}
}

// Select returns a variant of the most recent similar turn when there is
// one. Otherwise it picks a template for the intent, applies the style
// filters and, for long contexts, appends an insight.
func (s *Selector) Select(in Input) (Choice, error) {
	if len(in.Similar) > 0 {
		base := strings.TrimSpace(in.Similar[0].Response)
		if base == "" {
			return Choice{}, fmt.Errorf("learned response: %w", ErrEmptyResponse)
		}
		return Choice{Text: pick(s.rnd, learnedVariants)(base), Source: SourceLearned}, nil
	}

	text := GenericTemplate
	if list, ok := templates[in.Intent]; ok {
		var err error
		if text, err = render(pick(s.rnd, list), in.Persona); err != nil {
			return Choice{}, err
		}
	}

	text = ApplyFilters(text, StyleFor(in.Intent), s.rnd)
	if utf8.RuneCountInString(in.Context) > InsightThreshold {
		text += " " + pick(s.rnd, insights)
	}
	return Choice{Text: text, Source: SourceTemplate}, nil
}

// Fallback returns one of the apology texts.
func (s *Selector) Fallback() string {
	return pick(s.rnd, fallbacks)
}

var learnedVariants = []func(string) string{
	func(r string) string { return r },
	func(r string) string { return "Como sempre digo: " + r },
	func(r string) string { return "Baseado na minha experiência, " + strings.ToLower(r) },
	expandAbbreviations.Replace,
}

// Chat shorthand imported with training conversations.
var expandAbbreviations = strings.NewReplacer(
	" vc ", " você ",
	" pq ", " porque ",
	" tb ", " também ",
)

func render(tmpl string, p persona.Persona) (string, error) {
	if strings.Contains(tmpl, placeholderName) && strings.TrimSpace(p.Name) == "" {
		return "", fmt.Errorf("render template: persona %s is empty", persona.KeyName)
	}
	if strings.Contains(tmpl, placeholderCompany) && strings.TrimSpace(p.Company) == "" {
		return "", fmt.Errorf("render template: persona %s is empty", persona.KeyCompany)
	}
	return strings.NewReplacer(placeholderName, p.Name, placeholderCompany, p.Company).Replace(tmpl), nil
}

func pick[T any](rnd Rand, list []T) T {
	return list[rnd.Intn(len(list))]
}
