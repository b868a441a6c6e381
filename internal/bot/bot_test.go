package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/sdr_chatbot/internal/ingest"
	"github.com/lewisedginton/sdr_chatbot/internal/intent"
	"github.com/lewisedginton/sdr_chatbot/internal/llm"
	"github.com/lewisedginton/sdr_chatbot/internal/persona"
	"github.com/lewisedginton/sdr_chatbot/internal/responder"
	"github.com/lewisedginton/sdr_chatbot/internal/session_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

type staticPersona persona.Persona

func (s staticPersona) Current() persona.Persona { return persona.Persona(s) }

type recorder struct {
	mu  sync.Mutex
	obs []Observation
}

func (r *recorder) ObserveTurn(o Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, o)
}

type harness struct {
	bot      *Bot
	store    *store.Store
	sessions session_manager.Manager
	observer *recorder
}

func newHarness(t *testing.T, mutate func(*Config)) harness {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "bot.db"),
	}, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	sessions, err := session_manager.New(session_manager.Config{Logger: logger.NewNopLogger()})
	require.NoError(t, err)

	obs := &recorder{}
	cfg := Config{
		Store:    s,
		Persona:  staticPersona(persona.Default()),
		Sessions: sessions,
		Observer: obs,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := New(cfg)
	require.NoError(t, err)
	return harness{bot: b, store: s, sessions: sessions, observer: obs}
}

func renderedGreetings(p persona.Persona) []string {
	var out []string
	for _, tmpl := range responder.Templates(intent.Greeting) {
		out = append(out, strings.NewReplacer("{nome}", p.Name, "{empresa}", p.Company).Replace(tmpl))
	}
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is required")
	assert.Contains(t, err.Error(), "session manager is required")
}

func TestGreetingOnEmptyStore(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	reply, err := h.bot.Process(ctx, Request{SessionID: "s1", Message: "Olá, bom dia"})
	require.NoError(t, err)

	assert.Equal(t, intent.Greeting, reply.Intent)
	assert.Equal(t, responder.SourceTemplate, reply.Source)
	assert.False(t, reply.Degraded)
	assert.NoError(t, reply.Err)
	assert.Contains(t, reply.Text, "Gabriel")

	found := false
	for _, g := range renderedGreetings(persona.Default()) {
		if strings.Contains(reply.Text, g) {
			found = true
		}
	}
	assert.True(t, found, "reply %q holds no greeting template", reply.Text)

	require.NotEmpty(t, reply.Hash)
	stored, err := h.store.GetTurnByHash(ctx, reply.Hash)
	require.NoError(t, err)
	assert.Equal(t, "saudacao", stored.Intent)
	assert.Equal(t, "Olá, bom dia", stored.UserMessage)
	assert.Equal(t, "s1", stored.Context["session_id"])

	hist := h.sessions.History(ctx, "s1")
	require.Len(t, hist, 2)
	assert.Equal(t, session_manager.RoleUser, hist[0].Role)
	assert.Equal(t, reply.Text, hist[1].Content)
}

func TestSecondPricingQuestionReusesStoredReply(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.bot.Process(ctx, Request{SessionID: "a", Message: "Qual o preço?"})
	require.NoError(t, err)
	assert.Equal(t, intent.Pricing, first.Intent)
	assert.Equal(t, responder.SourceTemplate, first.Source)

	second, err := h.bot.Process(ctx, Request{SessionID: "b", Message: "Qual o preço do CRM?"})
	require.NoError(t, err)
	assert.Equal(t, responder.SourceLearned, second.Source)

	variants := []string{
		first.Text,
		"Como sempre digo: " + first.Text,
		"Baseado na minha experiência, " + strings.ToLower(first.Text),
	}
	assert.Contains(t, variants, second.Text)
	for _, tmpl := range responder.Templates(intent.Pricing) {
		assert.NotEqual(t, tmpl, second.Text)
	}
}

func TestProcessCreatesSession(t *testing.T) {
	h := newHarness(t, nil)
	reply, err := h.bot.Process(context.Background(), Request{Message: "tchau", LeadID: "lead-9"})
	require.NoError(t, err)
	require.NotEmpty(t, reply.SessionID)
	assert.Len(t, h.sessions.History(context.Background(), reply.SessionID), 2)
}

func TestProcessRejectsEmptyMessage(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.bot.Process(context.Background(), Request{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHistoryFeedsContext(t *testing.T) {
	var got llm.Prompt
	h := newHarness(t, func(c *Config) {
		c.Drafter = drafterFunc(func(_ context.Context, p llm.Prompt) (string, error) {
			got = p
			return "ok", nil
		})
	})
	ctx := context.Background()
	for _, m := range []string{"oi", "quero saber mais", "como funciona?"} {
		_, err := h.bot.Process(ctx, Request{SessionID: "s", Message: m})
		require.NoError(t, err)
	}
	assert.Len(t, got.History, 4)
	assert.Contains(t, got.Context, "HISTÓRICO DA CONVERSA:")
	assert.Contains(t, got.Context, "Intenção detectada: duvida")
}

type failingStore struct {
	findErr error
	saveErr error
	saved   int
}

func (f *failingStore) FindSimilar(context.Context, string, int) ([]store.Turn, error) {
	return nil, f.findErr
}

func (f *failingStore) SaveTurn(_ context.Context, t store.Turn) (store.SaveResult, error) {
	f.saved++
	return store.SaveResult{Hash: store.TurnHash(t.UserMessage, t.Response), Inserted: true}, f.saveErr
}

func TestLookupFailureDegradesToNoExamples(t *testing.T) {
	fs := &failingStore{findErr: errors.New("database is locked")}
	h := newHarness(t, func(c *Config) { c.Store = fs })

	reply, err := h.bot.Process(context.Background(), Request{SessionID: "s", Message: "Qual o preço?"})
	require.NoError(t, err)
	assert.Equal(t, responder.SourceTemplate, reply.Source)
	assert.False(t, reply.Degraded)

	var se *StageError
	require.ErrorAs(t, reply.Err, &se)
	assert.Equal(t, StageLookup, se.Stage)
	assert.Equal(t, 1, fs.saved)
	assert.Equal(t, []string{StageLookup}, h.observer.obs[0].FailedStages)
}

func TestPersistFailureKeepsReply(t *testing.T) {
	fs := &failingStore{saveErr: errors.New("disk full")}
	h := newHarness(t, func(c *Config) { c.Store = fs })

	reply, err := h.bot.Process(context.Background(), Request{SessionID: "s", Message: "oi"})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Text)
	assert.Empty(t, reply.Hash)
	assert.ErrorContains(t, reply.Err, "disk full")
}

func TestSelectionFailureFallsBack(t *testing.T) {
	fs := &failingStore{}
	h := newHarness(t, func(c *Config) {
		c.Store = fs
		c.Persona = staticPersona(persona.Persona{})
	})

	reply, err := h.bot.Process(context.Background(), Request{SessionID: "s", Message: "Olá"})
	require.NoError(t, err)
	assert.True(t, reply.Degraded)
	assert.Equal(t, responder.SourceFallback, reply.Source)
	assert.Contains(t, responder.Fallbacks(), reply.Text)
	assert.Equal(t, 0, fs.saved)

	var se *StageError
	require.ErrorAs(t, reply.Err, &se)
	assert.Equal(t, []string{StageContext, StageSelect}, h.observer.obs[0].FailedStages)
}

type drafterFunc func(ctx context.Context, p llm.Prompt) (string, error)

func (f drafterFunc) Name() string { return "fake" }
func (f drafterFunc) Reply(ctx context.Context, p llm.Prompt) (string, error) {
	return f(ctx, p)
}

type examplesFunc func(ctx context.Context) (ingest.Examples, error)

func (f examplesFunc) Load(ctx context.Context) (ingest.Examples, error) { return f(ctx) }

func TestDrafterReply(t *testing.T) {
	var got llm.Prompt
	h := newHarness(t, func(c *Config) {
		c.Drafter = drafterFunc(func(_ context.Context, p llm.Prompt) (string, error) {
			got = p
			return "Resposta do modelo", nil
		})
		c.Examples = examplesFunc(func(context.Context) (ingest.Examples, error) {
			return ingest.Examples{Conversations: []string{"ex1"}, References: []string{"ref"}}, nil
		})
	})

	reply, err := h.bot.Process(context.Background(), Request{SessionID: "s", Message: "quero agendar", ContactName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Resposta do modelo", reply.Text)
	assert.Equal(t, responder.SourceLLM, reply.Source)
	assert.NotEmpty(t, reply.Hash)

	assert.Equal(t, "quero agendar", got.Message)
	assert.Equal(t, "Ana", got.Contact)
	assert.Equal(t, []string{"ex1"}, got.Examples)
	assert.Equal(t, []string{"ref"}, got.References)
	assert.Contains(t, got.Context, "IDENTIDADE:")
}

func TestDrafterFailureFallsBackToSelector(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Drafter = drafterFunc(func(context.Context, llm.Prompt) (string, error) {
			return "", errors.New("rate limited")
		})
	})

	reply, err := h.bot.Process(context.Background(), Request{SessionID: "s", Message: "Olá"})
	require.NoError(t, err)
	assert.Equal(t, responder.SourceTemplate, reply.Source)
	assert.True(t, reply.Degraded)
	assert.Contains(t, reply.Text, "Gabriel")
	assert.ErrorContains(t, reply.Err, "rate limited")
}

type memoryFunc func(ctx context.Context, leadID string, facts map[string]any) error

func (f memoryFunc) Remember(ctx context.Context, leadID string, facts map[string]any) error {
	return f(ctx, leadID, facts)
}

func TestMemoryReceivesContextFacts(t *testing.T) {
	var gotLead string
	var gotFacts map[string]any
	h := newHarness(t, func(c *Config) {
		c.Memory = memoryFunc(func(_ context.Context, leadID string, facts map[string]any) error {
			gotLead, gotFacts = leadID, facts
			return nil
		})
	})

	_, err := h.bot.Process(context.Background(), Request{
		SessionID:   "s",
		Message:     "oi",
		LeadID:      "42",
		ContactName: "Ana",
		Context:     map[string]any{"empresa": "Padaria"},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", gotLead)
	assert.Equal(t, map[string]any{"empresa": "Padaria", "contact_name": "Ana"}, gotFacts)
}

func TestMemorySkippedWithoutFacts(t *testing.T) {
	calls := 0
	h := newHarness(t, func(c *Config) {
		c.Memory = memoryFunc(func(context.Context, string, map[string]any) error {
			calls++
			return nil
		})
	})

	_, err := h.bot.Process(context.Background(), Request{SessionID: "s", Message: "oi", LeadID: "42"})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestMemoryFailureDoesNotDegrade(t *testing.T) {
	var gotLead string
	h := newHarness(t, func(c *Config) {
		c.Memory = memoryFunc(func(_ context.Context, leadID string, _ map[string]any) error {
			gotLead = leadID
			return errors.New("disk full")
		})
	})

	reply, err := h.bot.Process(context.Background(), Request{SessionID: "anon", Message: "oi", ContactName: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "anon", gotLead)
	assert.False(t, reply.Degraded)
	assert.NotEmpty(t, reply.Hash)

	var se *StageError
	require.ErrorAs(t, reply.Err, &se)
	assert.Equal(t, StageMemory, se.Stage)
}
