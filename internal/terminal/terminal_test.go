package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/sdr_chatbot/internal/bot"
	"github.com/lewisedginton/sdr_chatbot/internal/ingest"
	"github.com/lewisedginton/sdr_chatbot/internal/intent"
	"github.com/lewisedginton/sdr_chatbot/internal/persona"
	"github.com/lewisedginton/sdr_chatbot/internal/session_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

type fakeBot struct {
	sessions session_manager.Manager
	requests []bot.Request
}

func (f *fakeBot) NewSession(ctx context.Context, leadID string) string {
	return f.sessions.NewSession(ctx, leadID)
}

func (f *fakeBot) Process(ctx context.Context, req bot.Request) (bot.Reply, error) {
	f.requests = append(f.requests, req)
	label := intent.Classify(req.Message)
	text := "Resposta para " + req.Message
	_ = f.sessions.Append(ctx, req.SessionID,
		session_manager.Entry{Role: session_manager.RoleUser, Content: req.Message},
		session_manager.Entry{Role: session_manager.RoleAssistant, Content: text})
	return bot.Reply{SessionID: req.SessionID, Text: text, Intent: label}, nil
}

type staticPersona persona.Persona

func (s staticPersona) Current() persona.Persona { return persona.Persona(s) }

type fakeStats struct {
	st  store.Stats
	err error
}

func (f fakeStats) Stats(context.Context) (store.Stats, error) { return f.st, f.err }

type fakeUploader struct {
	res ingest.UploadResult
	err error
	got string
}

func (f *fakeUploader) UploadFile(_ context.Context, path string) (ingest.UploadResult, error) {
	f.got = path
	return f.res, f.err
}

type harness struct {
	bot      *fakeBot
	uploader *fakeUploader
	out      *bytes.Buffer
	repl     *REPL
}

func run(t *testing.T, input string, mutate func(*Config)) harness {
	t.Helper()
	sessions, err := session_manager.New(session_manager.Config{Logger: logger.NewNopLogger()})
	require.NoError(t, err)

	h := harness{bot: &fakeBot{sessions: sessions}, uploader: &fakeUploader{}, out: &bytes.Buffer{}}
	last := time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)
	cfg := Config{
		Bot:      h.bot,
		Sessions: sessions,
		Persona:  staticPersona(persona.Default()),
		Stats: fakeStats{st: store.Stats{
			TotalConversations: 7,
			Documents:          2,
			LastConversation:   &last,
			TopIntents:         []store.IntentCount{{Intent: "preco", Count: 4}},
		}},
		Uploader: h.uploader,
		Status:   func() [][2]string { return [][2]string{{"modelo", "nenhum"}} },
		In:       strings.NewReader(input),
		Out:      h.out,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.repl, err = New(cfg)
	require.NoError(t, err)
	require.NoError(t, h.repl.Run(context.Background()))
	return h
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestMessagesShowReplyAndIntent(t *testing.T) {
	h := run(t, "Quanto custa?\n\n/quit\nnever read\n", nil)

	require.Len(t, h.bot.requests, 1)
	assert.Equal(t, h.repl.SessionID(), h.bot.requests[0].SessionID)
	assert.Equal(t, "texto", h.bot.requests[0].MessageType)

	out := h.out.String()
	assert.Contains(t, out, "Gabriel - SDR Especialista, With Consultoria")
	assert.Contains(t, out, "Gabriel: Resposta para Quanto custa?")
	assert.Contains(t, out, "Intenção detectada: preco")
	assert.Contains(t, out, "Até logo!")
	assert.NotContains(t, out, "never read")
}

func TestEndOfInputStops(t *testing.T) {
	h := run(t, "Olá", nil)
	assert.Len(t, h.bot.requests, 1)
}

func TestHistoryAndClear(t *testing.T) {
	h := run(t, "/history\nOlá\n/history\n/clear\n/history\n/exit\n", nil)
	out := h.out.String()

	assert.Equal(t, 2, strings.Count(out, "Nenhum histórico nesta sessão"))
	assert.Contains(t, out, "Você: Olá")
	assert.Contains(t, out, "Gabriel: Resposta para Olá")
	assert.Contains(t, out, "Histórico da conversa limpo")
}

func TestStatusPersonaStats(t *testing.T) {
	h := run(t, "/status\n/persona\n/stats\n/help\n/quit\n", nil)
	out := h.out.String()

	assert.Contains(t, out, "sessão: "+h.repl.SessionID())
	assert.Contains(t, out, "documentos: 2")
	assert.Contains(t, out, "modelo: nenhum")
	assert.Contains(t, out, "nome: Gabriel")
	assert.Contains(t, out, "especialidades: automação de vendas, CRM, consultoria empresarial")
	assert.Contains(t, out, "conversas: 7")
	assert.Contains(t, out, "intenção preco: 4")
	assert.Contains(t, out, "/upload <arquivo>")
	assert.Empty(t, h.bot.requests)
}

func TestStatsUnavailable(t *testing.T) {
	h := run(t, "/stats\n/quit\n", func(c *Config) {
		c.Stats = fakeStats{err: errors.New("database is closed")}
	})
	assert.Contains(t, h.out.String(), "Erro ao obter estatísticas: database is closed")
}

func TestUpload(t *testing.T) {
	var uploader *fakeUploader
	h := run(t, "/upload\n/upload treino.txt\n/quit\n", func(c *Config) {
		uploader = &fakeUploader{res: ingest.UploadResult{
			Kind:     ingest.UploadTraining,
			Training: &ingest.ImportResult{Filename: "treino.txt", Found: 3, Inserted: 2, Skipped: 1},
		}}
		c.Uploader = uploader
	})
	out := h.out.String()

	assert.Equal(t, "treino.txt", uploader.got)
	assert.Contains(t, out, "Uso: /upload <arquivo>")
	assert.Contains(t, out, "treino.txt: 3 pares encontrados, 2 novos, 1 repetidos")
}

func TestUploadDocumentAndFailure(t *testing.T) {
	h := run(t, "/upload guia.pdf\n/quit\n", func(c *Config) {
		c.Uploader = &fakeUploader{res: ingest.UploadResult{
			Kind:     ingest.UploadDocument,
			Document: &ingest.FileResult{Filename: "guia.pdf", FileType: "pdf", WordCount: 12, Preview: "Proposta"},
		}}
	})
	assert.Contains(t, h.out.String(), "guia.pdf processado: tipo pdf, 12 palavras")
	assert.Contains(t, h.out.String(), "Prévia: Proposta")

	h = run(t, "/upload x.docx\n/quit\n", func(c *Config) {
		c.Uploader = &fakeUploader{err: errors.New("unsupported media")}
	})
	assert.Contains(t, h.out.String(), "Erro ao processar arquivo: unsupported media")
}

func TestCancelledContextStops(t *testing.T) {
	sessions, err := session_manager.New(session_manager.Config{Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	fb := &fakeBot{sessions: sessions}
	var out bytes.Buffer
	repl, err := New(Config{
		Bot: fb, Sessions: sessions, Persona: staticPersona(persona.Default()),
		In: strings.NewReader("Olá\n"), Out: &out,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, repl.Run(ctx))
	assert.Empty(t, fb.requests)
	assert.Contains(t, out.String(), "Interrompido")
}
