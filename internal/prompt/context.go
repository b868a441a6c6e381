// Package prompt assembles the persona context that guides each response.
package prompt

import (
	"fmt"
	"strings"

	"github.com/lewisedginton/sdr_chatbot/internal/intent"
	"github.com/lewisedginton/sdr_chatbot/internal/persona"
	"github.com/lewisedginton/sdr_chatbot/internal/session_manager"
)

const (
	// HistoryWindow is how many trailing history entries are rendered.
	HistoryWindow = 3
	// MaxExamples is how many similar turns are rendered.
	MaxExamples = 2

	sectionSeparator = "\n\n"
	leadSpeaker      = "Cliente"
)

// Example is a previously stored exchange similar to the current message.
type Example struct {
	UserMessage string
	Response    string
}

// Input is everything the assembler reads. Intent is derived from Message
// when left empty.
type Input struct {
	Message  string
	Intent   intent.Label
	Examples []Example
	Persona  persona.Persona
	History  []session_manager.Entry
}

var guidelines = map[intent.Label]string{
	intent.Greeting:  "Seja caloroso mas profissional. Apresente-se e pergunte como pode ajudar.",
	intent.Product:   "Foque nos benefícios, não apenas features. Faça perguntas para entender necessidades.",
	intent.Pricing:   "Não dê valores imediatamente. Explore necessidades primeiro, depois fale em valor.",
	intent.Interest:  "Demonstre entusiasmo. Seja específico sobre próximos passos.",
	intent.Question:  "Seja didático e completo. Use exemplos práticos.",
	intent.Objection: "Seja empático. Valide a preocupação antes de responder.",
	intent.Farewell:  "Seja cordial. Deixe a porta aberta para futuro contato.",
}

const defaultGuideline = "Seja útil, profissional e focado em entender como pode agregar valor."

// Guideline returns the behavioural guideline for label.
func Guideline(label intent.Label) string {
	if g, ok := guidelines[label]; ok {
		return g
	}
	return defaultGuideline
}

// Build renders identity, history, examples and guidelines, in that order,
// joined by blank lines. History and examples are omitted when empty. It
// fails only when the persona cannot produce an identity.
func Build(in Input) (string, error) {
	if err := in.Persona.Validate(); err != nil {
		return "", fmt.Errorf("build context: %w", err)
	}

	label := in.Intent
	if label == "" {
		label = intent.Classify(in.Message)
	}

	sections := []string{identity(in.Persona)}
	if h := history(in.History, in.Persona.Name); h != "" {
		sections = append(sections, h)
	}
	if e := examples(in.Examples, in.Persona.Name); e != "" {
		sections = append(sections, e)
	}
	sections = append(sections, behaviour(label))

	return strings.Join(sections, sectionSeparator), nil
}

// Minimal is the single-paragraph identity used when Build fails. It never
// fails itself; missing fields fall back to the default persona.
func Minimal(p persona.Persona) string {
	def := persona.Default()
	name, company := p.Name, p.Company
	if strings.TrimSpace(name) == "" {
		name = def.Name
	}
	if strings.TrimSpace(company) == "" {
		company = def.Company
	}
	return fmt.Sprintf("Você é %s da %s.\nSeja profissional, útil e focado em ajudar o cliente.", name, company)
}

func identity(p persona.Persona) string {
	var b strings.Builder
	b.WriteString("IDENTIDADE:\n")
	fmt.Fprintf(&b, "Você é %s, %s da %s.\n", p.Name, p.Role, p.Company)
	if len(p.Specialties) > 0 {
		fmt.Fprintf(&b, "Sua missão é ajudar empresas com %s.\n", strings.Join(p.Specialties, ", "))
	}
	if p.Tone != "" {
		fmt.Fprintf(&b, "Tom de comunicação: %s.\n", p.Tone)
	}
	if p.Style != "" {
		fmt.Fprintf(&b, "Estilo: %s.\n", p.Style)
	}
	return strings.TrimRight(b.String(), "\n")
}

func history(entries []session_manager.Entry, assistant string) string {
	if len(entries) == 0 {
		return ""
	}
	if len(entries) > HistoryWindow {
		entries = entries[len(entries)-HistoryWindow:]
	}

	var b strings.Builder
	b.WriteString("HISTÓRICO DA CONVERSA:")
	for _, e := range entries {
		speaker := leadSpeaker
		if e.Role == session_manager.RoleAssistant {
			speaker = assistant
		}
		fmt.Fprintf(&b, "\n%s: %s", speaker, e.Content)
	}
	return b.String()
}

func examples(list []Example, assistant string) string {
	if len(list) == 0 {
		return ""
	}
	if len(list) > MaxExamples {
		list = list[:MaxExamples]
	}

	blocks := make([]string, len(list))
	for i, ex := range list {
		blocks[i] = fmt.Sprintf("%s: %s\n%s: %s", leadSpeaker, ex.UserMessage, assistant, ex.Response)
	}
	return "EXEMPLOS DE CONVERSAS SIMILARES:\n" + strings.Join(blocks, "\n\n")
}

func behaviour(label intent.Label) string {
	return fmt.Sprintf("DIRETRIZES PARA ESTA RESPOSTA:\nIntenção detectada: %s\nComportamento: %s\n"+
		"Lembre-se: Sempre busque qualificar o lead e identificar oportunidades de agendamento.",
		label, Guideline(label))
}
