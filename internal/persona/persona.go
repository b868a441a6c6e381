// Package persona holds the SDR's identity and keeps it in sync with storage.
package persona

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Storage keys. They match the key/value rows in persona_config.
const (
	KeyName        = "nome"
	KeyCompany     = "empresa"
	KeyRole        = "cargo"
	KeyTone        = "tom"
	KeyStyle       = "estilo"
	KeySpecialties = "especialidades"
	KeyGreeting    = "saudacao_padrao"
	KeyFarewell    = "despedida_padrao"
)

// Persona is the named identity responses are personalised around. Keys
// outside the typed fields are kept in Extra so nothing written by an
// operator is lost.
type Persona struct {
	Name        string         `json:"nome"`
	Company     string         `json:"empresa"`
	Role        string         `json:"cargo"`
	Tone        string         `json:"tom"`
	Style       string         `json:"estilo"`
	Specialties []string       `json:"especialidades"`
	Greeting    string         `json:"saudacao_padrao"`
	Farewell    string         `json:"despedida_padrao"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Default is the out-of-the-box persona.
func Default() Persona {
	return Persona{
		Name:        "Gabriel",
		Company:     "With Consultoria",
		Role:        "SDR Especialista",
		Tone:        "profissional_amigavel",
		Style:       "consultivo",
		Specialties: []string{"automação de vendas", "CRM", "consultoria empresarial"},
		Greeting:    "Olá! Aqui é o Gabriel da With Consultoria.",
		Farewell:    "Foi um prazer conversar! Estou à disposição.",
	}
}

// Validate checks the fields every prompt depends on.
func (p Persona) Validate() error {
	var result error
	if strings.TrimSpace(p.Name) == "" {
		result = multierror.Append(result, fmt.Errorf("%s is required", KeyName))
	}
	if strings.TrimSpace(p.Company) == "" {
		result = multierror.Append(result, fmt.Errorf("%s is required", KeyCompany))
	}
	if strings.TrimSpace(p.Role) == "" {
		result = multierror.Append(result, fmt.Errorf("%s is required", KeyRole))
	}
	return result
}

// Clone returns a deep copy.
func (p Persona) Clone() Persona {
	p.Specialties = append([]string(nil), p.Specialties...)
	p.Extra = maps.Clone(p.Extra)
	return p
}

// Entries flattens the persona into storage rows of key to JSON value.
func (p Persona) Entries() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, 8+len(p.Extra))
	for key, value := range p.Extra {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = raw
	}

	typed := map[string]any{
		KeyName:        p.Name,
		KeyCompany:     p.Company,
		KeyRole:        p.Role,
		KeyTone:        p.Tone,
		KeyStyle:       p.Style,
		KeySpecialties: p.Specialties,
		KeyGreeting:    p.Greeting,
		KeyFarewell:    p.Farewell,
	}
	for key, value := range typed {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = raw
	}
	return out, nil
}

// Apply overlays storage rows onto p and returns the result. Unknown keys
// land in Extra.
func (p Persona) Apply(entries map[string]json.RawMessage) (Persona, error) {
	out := p.Clone()
	var result error

	str := func(key string, dest *string, raw json.RawMessage) {
		if err := json.Unmarshal(raw, dest); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s must be a string: %w", key, err))
		}
	}

	for key, raw := range entries {
		switch key {
		case KeyName:
			str(key, &out.Name, raw)
		case KeyCompany:
			str(key, &out.Company, raw)
		case KeyRole:
			str(key, &out.Role, raw)
		case KeyTone:
			str(key, &out.Tone, raw)
		case KeyStyle:
			str(key, &out.Style, raw)
		case KeyGreeting:
			str(key, &out.Greeting, raw)
		case KeyFarewell:
			str(key, &out.Farewell, raw)
		case KeySpecialties:
			var list []string
			if err := json.Unmarshal(raw, &list); err != nil {
				// accept a comma separated string too
				var s string
				if json.Unmarshal(raw, &s) != nil {
					result = multierror.Append(result, fmt.Errorf("%s must be a list of strings: %w", key, err))
					continue
				}
				list = splitList(s)
			}
			out.Specialties = list
		default:
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", key, err))
				continue
			}
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			out.Extra[key] = v
		}
	}
	if result != nil {
		return p, result
	}
	return out, nil
}

// ParseAssignment turns an operator's "key=value" into a storage row. Values
// that are valid JSON are kept as such; anything else is a plain string.
func ParseAssignment(s string) (string, json.RawMessage, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("expected key=value, got %q", s)
	}
	value = strings.TrimSpace(value)

	switch {
	case key == KeySpecialties && !strings.HasPrefix(value, "["):
		raw, _ := json.Marshal(splitList(value))
		return key, raw, nil
	case stringKeys[key] && !strings.HasPrefix(value, `"`):
		raw, _ := json.Marshal(value)
		return key, raw, nil
	case json.Valid([]byte(value)):
		return key, json.RawMessage(value), nil
	default:
		raw, _ := json.Marshal(value)
		return key, raw, nil
	}
}

var stringKeys = map[string]bool{
	KeyName: true, KeyCompany: true, KeyRole: true, KeyTone: true,
	KeyStyle: true, KeyGreeting: true, KeyFarewell: true,
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
