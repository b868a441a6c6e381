// Package intent classifies inbound lead messages by keyword matching.
package intent

import "strings"

// Label names the purpose of an inbound message.
type Label string

const (
	Greeting   Label = "saudacao"
	Product    Label = "produto"
	Pricing    Label = "preco"
	Interest   Label = "interesse"
	Question   Label = "duvida"
	Scheduling Label = "agendamento"
	Objection  Label = "objecao"
	Farewell   Label = "despedida"
	General    Label = "geral"
)

func (l Label) String() string { return string(l) }

// Rule binds a label to the substrings that trigger it.
type Rule struct {
	Label    Label
	Keywords []string
}

// rules is evaluated top to bottom; the first rule with a matching keyword wins.
var rules = []Rule{
	{Greeting, []string{"oi", "olá", "bom dia", "boa tarde", "boa noite", "hello"}},
	{Product, []string{"produto", "serviço", "solução", "oferece", "vende"}},
	{Pricing, []string{"preço", "valor", "custa", "investimento", "quanto"}},
	{Interest, []string{"interessado", "quero", "gostaria", "tenho interesse"}},
	{Question, []string{"dúvida", "pergunta", "como funciona", "explicar"}},
	{Scheduling, []string{"agendar", "reunião", "conversar", "demonstração"}},
	{Objection, []string{"caro", "não preciso", "já tenho", "não funciona"}},
	{Farewell, []string{"tchau", "obrigado", "até logo", "valeu"}},
}

// Rules returns a copy of the classification table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = Rule{Label: r.Label, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Labels lists every label the classifier can return, General last.
func Labels() []Label {
	out := make([]Label, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.Label)
	}
	return append(out, General)
}

// Classify lower-cases text and returns the label of the first rule whose
// keyword appears as a substring. Messages matching nothing are General.
func Classify(text string) Label {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lowered, kw) {
				return r.Label
			}
		}
	}
	return General
}

// Parse maps a stored label back to a Label, defaulting to General.
func Parse(s string) Label {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Labels() {
		if l == known {
			return l
		}
	}
	return General
}
