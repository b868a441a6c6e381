// Package llm drafts replies with a hosted chat-completion model. The
// provider packages under it implement Client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/sdr_chatbot/internal/session_manager"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Provider names accepted in configuration.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Request is a single blocking completion request.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int64
}

// Client is a chat-completion backend.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Prompt carries what the responder turns into a Request.
type Prompt struct {
	// Context is the assembled persona context.
	Context string
	// Examples are raw example conversation records.
	Examples []string
	// References are reference document excerpts.
	References []string
	History    []session_manager.Entry
	Message    string
	// Contact is the lead's display name, if known.
	Contact string
}

const (
	// MaxPromptExamples and MaxPromptReferences cap what goes into the system prompt.
	MaxPromptExamples   = 2
	MaxPromptReferences = 1
)

// Responder wraps a Client with the SDR prompt.
type Responder struct {
	client      Client
	temperature float64
	maxTokens   int64
	timeout     time.Duration
	log         logger.Logger
}

// ResponderConfig tunes NewResponder. Zero values use the defaults.
type ResponderConfig struct {
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
}

func NewResponder(client Client, cfg ResponderConfig, log logger.Logger) *Responder {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Responder{
		client:      client,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		log:         log.WithFields(logger.StringField("llm", client.Name())),
	}
}

// Name of the underlying client.
func (r *Responder) Name() string { return r.client.Name() }

// Reply asks the model for the next SDR message.
func (r *Responder) Reply(ctx context.Context, p Prompt) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := r.client.Complete(ctx, BuildRequest(p, r.temperature, r.maxTokens))
	if err != nil {
		r.log.Error("completion failed", logger.ErrorField(err), logger.DurationField("duration", time.Since(start)))
		return "", fmt.Errorf("%s completion: %w", r.client.Name(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s completion: %w", r.client.Name(), ErrEmptyCompletion)
	}
	r.log.Debug("completion received", logger.DurationField("duration", time.Since(start)), logger.IntField("chars", len(text)))
	return text, nil
}

// BuildRequest renders p as a system prompt plus the recent history and the
// new message as the final user turn.
func BuildRequest(p Prompt, temperature float64, maxTokens int64) Request {
	var b strings.Builder
	b.WriteString(p.Context)
	if ex := firstN(p.Examples, MaxPromptExamples); len(ex) > 0 {
		b.WriteString("\n\nExemplos de conversas reais:\n")
		b.WriteString(strings.Join(ex, "\n\n"))
	}
	if refs := firstN(p.References, MaxPromptReferences); len(refs) > 0 {
		b.WriteString("\n\nInformações de referência:\n")
		b.WriteString(strings.Join(refs, "\n\n"))
	}
	b.WriteString("\n\nResponda de forma personalizada, natural e alinhada ao estilo dos exemplos.")
	if p.Contact != "" {
		fmt.Fprintf(&b, " O nome do contato é %s.", p.Contact)
	}

	msgs := make([]Message, 0, len(p.History)+1)
	for _, e := range p.History {
		role := RoleUser
		if e.Role == session_manager.RoleAssistant {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: e.Content})
	}
	// The current message may already be the last history entry.
	if n := len(msgs); n == 0 || msgs[n-1].Role != RoleUser || msgs[n-1].Content != p.Message {
		msgs = append(msgs, Message{Role: RoleUser, Content: p.Message})
	}

	return Request{
		System:      b.String(),
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

func firstN(list []string, n int) []string {
	out := make([]string, 0, n)
	for _, s := range list {
		if len(out) == n {
			break
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
