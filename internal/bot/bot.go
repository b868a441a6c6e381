// Package bot runs the per-message pipeline: classify the intent, look up
// similar stored turns, assemble the persona context, pick a reply and
// persist the turn.
package bot

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/sdr_chatbot/internal/ingest"
	"github.com/lewisedginton/sdr_chatbot/internal/intent"
	"github.com/lewisedginton/sdr_chatbot/internal/llm"
	"github.com/lewisedginton/sdr_chatbot/internal/persona"
	"github.com/lewisedginton/sdr_chatbot/internal/prompt"
	"github.com/lewisedginton/sdr_chatbot/internal/responder"
	"github.com/lewisedginton/sdr_chatbot/internal/session_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// HistoryWindow is how many history entries are handed to the assembler.
const HistoryWindow = 5

// ErrEmptyMessage rejects requests with no text.
var ErrEmptyMessage = errors.New("message is empty")

// Pipeline stages, as reported in StageError and to the Observer.
const (
	StageLookup  = "lookup"
	StageContext = "context"
	StageLLM     = "llm"
	StageSelect  = "select"
	StageHistory = "history"
	StagePersist = "persist"
	StageMemory  = "memory"
)

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// TurnStore is the part of the store the pipeline uses.
type TurnStore interface {
	FindSimilar(ctx context.Context, message string, limit int) ([]store.Turn, error)
	SaveTurn(ctx context.Context, t store.Turn) (store.SaveResult, error)
}

// PersonaSource supplies the live persona.
type PersonaSource interface {
	Current() persona.Persona
}

// Drafter writes replies with a language model.
type Drafter interface {
	Name() string
	Reply(ctx context.Context, p llm.Prompt) (string, error)
}

// ExampleSource supplies example logs for the language model prompt.
type ExampleSource interface {
	Load(ctx context.Context) (ingest.Examples, error)
}

// LeadMemory keeps caller-supplied facts about a lead across sessions.
type LeadMemory interface {
	Remember(ctx context.Context, leadID string, facts map[string]any) error
}

// Observation describes one processed turn.
type Observation struct {
	Intent   intent.Label
	Source   responder.Source
	Degraded bool
	// FailedStages lists every stage that failed, in pipeline order.
	FailedStages []string
	Duration     time.Duration
}

// Observer is notified after every turn.
type Observer interface {
	ObserveTurn(o Observation)
}

// Request is one inbound lead message.
type Request struct {
	SessionID   string
	Message     string
	MessageType string
	LeadID      string
	ContactName string
	// Context is stored alongside the turn.
	Context map[string]any
}

// Reply is the outcome of a turn. Err aggregates every StageError; when
// Degraded is set the text came from a fallback path.
type Reply struct {
	SessionID string
	Text      string
	Intent    intent.Label
	Hash      string
	Source    responder.Source
	Degraded  bool
	Err       error
}

// Config wires a Bot. Drafter, Examples, Memory and Observer are optional.
type Config struct {
	Store    TurnStore
	Persona  PersonaSource
	Sessions session_manager.Manager
	Selector *responder.Selector
	Drafter  Drafter
	Examples ExampleSource
	Memory   LeadMemory
	Observer Observer
	Logger   logger.Logger
}

// Bot processes messages. It is safe for concurrent use; sessions share
// nothing but the store.
type Bot struct {
	store    TurnStore
	persona  PersonaSource
	sessions session_manager.Manager
	selector *responder.Selector
	drafter  Drafter
	examples ExampleSource
	memory   LeadMemory
	observer Observer
	log      logger.Logger
	now      func() time.Time
}

func New(cfg Config) (*Bot, error) {
	var result error
	if cfg.Store == nil {
		result = multierror.Append(result, fmt.Errorf("store is required"))
	}
	if cfg.Persona == nil {
		result = multierror.Append(result, fmt.Errorf("persona source is required"))
	}
	if cfg.Sessions == nil {
		result = multierror.Append(result, fmt.Errorf("session manager is required"))
	}
	if result != nil {
		return nil, result
	}
	if cfg.Selector == nil {
		cfg.Selector = responder.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	return &Bot{
		store:    cfg.Store,
		persona:  cfg.Persona,
		sessions: cfg.Sessions,
		selector: cfg.Selector,
		drafter:  cfg.Drafter,
		examples: cfg.Examples,
		memory:   cfg.Memory,
		observer: cfg.Observer,
		log:      cfg.Logger,
		now:      time.Now,
	}, nil
}

// NewSession allocates a session for leadID.
func (b *Bot) NewSession(ctx context.Context, leadID string) string {
	return b.sessions.NewSession(ctx, leadID)
}

// Process runs one message through the pipeline. The only error returned
// is for an invalid request; stage failures are recorded in Reply.Err and
// the pipeline carries on with the degraded input.
func (b *Bot) Process(ctx context.Context, req Request) (Reply, error) {
	start := b.now()
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return Reply{}, ErrEmptyMessage
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = b.sessions.NewSession(ctx, req.LeadID)
	}
	log := logger.FromContext(ctx, b.log).WithFields(logger.SessionIDField(sessionID))

	t := &turn{bot: b, log: log, req: req, msg: msg, reply: Reply{SessionID: sessionID}}
	t.run(ctx)

	if b.observer != nil {
		b.observer.ObserveTurn(Observation{
			Intent:       t.reply.Intent,
			Source:       t.reply.Source,
			Degraded:     t.reply.Degraded,
			FailedStages: t.failed,
			Duration:     b.now().Sub(start),
		})
	}
	log.Info("message processed",
		logger.IntentField(string(t.reply.Intent)),
		logger.StringField("source", string(t.reply.Source)),
		logger.BoolField("degraded", t.reply.Degraded),
		logger.DurationField("duration", b.now().Sub(start)))
	return t.reply, nil
}

// turn holds the state of one Process call.
type turn struct {
	bot    *Bot
	log    logger.Logger
	req    Request
	msg    string
	reply  Reply
	failed []string
}

func (t *turn) fail(stage string, err error) {
	t.failed = append(t.failed, stage)
	t.reply.Err = multierror.Append(t.reply.Err, &StageError{Stage: stage, Err: err})
	t.log.Error("pipeline stage failed", logger.StringField("stage", stage), logger.ErrorField(err))
}

func (t *turn) run(ctx context.Context) {
	b := t.bot
	t.reply.Intent = intent.Classify(t.msg)
	p := b.persona.Current()
	history := b.sessions.Recent(ctx, t.reply.SessionID, HistoryWindow)

	similar, err := b.store.FindSimilar(ctx, t.msg, store.DefaultSimilarLimit)
	if err != nil {
		t.fail(StageLookup, err)
	}
	examples := make([]prompt.Example, len(similar))
	for i, s := range similar {
		examples[i] = prompt.Example{UserMessage: s.UserMessage, Response: s.Response}
	}

	assembled, err := prompt.Build(prompt.Input{
		Message:  t.msg,
		Intent:   t.reply.Intent,
		Examples: examples,
		Persona:  p,
		History:  history,
	})
	if err != nil {
		t.fail(StageContext, err)
		assembled = prompt.Minimal(p)
	}

	t.respond(ctx, assembled, examples, history, p)
	t.record(ctx)
	t.remember(ctx)
}

func (t *turn) respond(ctx context.Context, assembled string, examples []prompt.Example, history []session_manager.Entry, p persona.Persona) {
	b := t.bot
	if b.drafter != nil {
		text, err := b.drafter.Reply(ctx, t.llmPrompt(ctx, assembled, history))
		if err == nil {
			t.reply.Text, t.reply.Source = text, responder.SourceLLM
			return
		}
		t.fail(StageLLM, err)
		t.reply.Degraded = true
	}

	choice, err := b.selector.Select(responder.Input{
		Intent:  t.reply.Intent,
		Context: assembled,
		Similar: examples,
		Persona: p,
	})
	if err != nil {
		t.fail(StageSelect, err)
		t.reply.Text, t.reply.Source, t.reply.Degraded = b.selector.Fallback(), responder.SourceFallback, true
		return
	}
	t.reply.Text, t.reply.Source = choice.Text, choice.Source
}

func (t *turn) llmPrompt(ctx context.Context, assembled string, history []session_manager.Entry) llm.Prompt {
	lp := llm.Prompt{
		Context: assembled,
		History: history,
		Message: t.msg,
		Contact: t.req.ContactName,
	}
	if t.bot.examples != nil {
		ex, err := t.bot.examples.Load(ctx)
		if err != nil {
			t.log.Warn("example logs unavailable", logger.ErrorField(err))
		}
		lp.Examples, lp.References = ex.PromptExamples(), ex.References
	}
	return lp
}

// record appends both sides to the session history and persists the turn.
// Fallback texts are not stored so they never resurface as learned replies.
func (t *turn) record(ctx context.Context) {
	b := t.bot
	now := b.now()
	err := b.sessions.Append(ctx, t.reply.SessionID,
		session_manager.Entry{
			Role:        session_manager.RoleUser,
			Content:     t.msg,
			Timestamp:   now,
			MessageType: t.req.MessageType,
			LeadID:      t.req.LeadID,
			Intent:      string(t.reply.Intent),
		},
		session_manager.Entry{
			Role:      session_manager.RoleAssistant,
			Content:   t.reply.Text,
			Timestamp: now,
			LeadID:    t.req.LeadID,
			Intent:    string(t.reply.Intent),
		})
	if err != nil {
		t.fail(StageHistory, err)
	}

	if t.reply.Source == responder.SourceFallback {
		return
	}

	saved, err := b.store.SaveTurn(ctx, store.Turn{
		UserMessage: t.msg,
		Response:    t.reply.Text,
		Context:     t.turnContext(),
		Intent:      string(t.reply.Intent),
		CreatedAt:   now,
	})
	if err != nil {
		t.fail(StagePersist, err)
		return
	}
	t.reply.Hash = saved.Hash
}

// remember files the request context and contact name under the lead, or
// under the session when the lead is anonymous. A failure here does not
// degrade the reply.
func (t *turn) remember(ctx context.Context) {
	b := t.bot
	if b.memory == nil || (len(t.req.Context) == 0 && t.req.ContactName == "") {
		return
	}
	scope := t.req.LeadID
	if scope == "" {
		scope = t.reply.SessionID
	}
	facts := make(map[string]any, len(t.req.Context)+1)
	maps.Copy(facts, t.req.Context)
	if t.req.ContactName != "" {
		facts["contact_name"] = t.req.ContactName
	}
	if err := b.memory.Remember(ctx, scope, facts); err != nil {
		t.fail(StageMemory, err)
	}
}

func (t *turn) turnContext() map[string]any {
	c := make(map[string]any, len(t.req.Context)+4)
	maps.Copy(c, t.req.Context)
	c["session_id"] = t.reply.SessionID
	c["source"] = string(t.reply.Source)
	if t.req.MessageType != "" {
		c["message_type"] = t.req.MessageType
	}
	if t.req.LeadID != "" {
		c["lead_id"] = t.req.LeadID
	}
	return c
}
