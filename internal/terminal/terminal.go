// Package terminal is an interactive front-end for talking to the bot from a
// shell. Ordinary lines go through the pipeline; lines starting with a slash
// are operator commands.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lewisedginton/sdr_chatbot/internal/bot"
	"github.com/lewisedginton/sdr_chatbot/internal/ingest"
	"github.com/lewisedginton/sdr_chatbot/internal/session_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// historyShown caps /history output.
const historyShown = 10

type Processor interface {
	Process(ctx context.Context, req bot.Request) (bot.Reply, error)
	NewSession(ctx context.Context, leadID string) string
}

type History interface {
	History(ctx context.Context, sessionID string) []session_manager.Entry
	Clear(ctx context.Context, sessionID string) error
}

type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

type FileUploader interface {
	UploadFile(ctx context.Context, path string) (ingest.UploadResult, error)
}

// Config wires a REPL. Status is optional and adds rows to /status.
type Config struct {
	Bot      Processor
	Sessions History
	Persona  bot.PersonaSource
	Stats    StatsSource
	Uploader FileUploader
	Status   func() [][2]string
	In       io.Reader
	Out      io.Writer
	Logger   logger.Logger
}

// REPL reads operator input line by line. One REPL is one session.
type REPL struct {
	cfg       Config
	log       logger.Logger
	sessionID string
	st        styles
}

type styles struct {
	title, bot, user, intent, ok, warn, err, label lipgloss.Style
	panel                                          lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		bot:    r.NewStyle().Foreground(lipgloss.Color("51")),
		user:   r.NewStyle().Foreground(lipgloss.Color("255")),
		intent: r.NewStyle().Faint(true).Foreground(lipgloss.Color("214")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("120")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")),
		err:    r.NewStyle().Foreground(lipgloss.Color("203")),
		label:  r.NewStyle().Bold(true),
		panel:  r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("86")).Padding(0, 1),
	}
}

func New(cfg Config) (*REPL, error) {
	if cfg.Bot == nil || cfg.Sessions == nil || cfg.Persona == nil {
		return nil, fmt.Errorf("bot, sessions and persona are required")
	}
	if cfg.In == nil || cfg.Out == nil {
		return nil, fmt.Errorf("input and output are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	return &REPL{
		cfg: cfg,
		log: cfg.Logger,
		st:  newStyles(lipgloss.NewRenderer(cfg.Out)),
	}, nil
}

// SessionID is the session this REPL talks in; empty until Run starts.
func (t *REPL) SessionID() string { return t.sessionID }

// Run loops until /quit, end of input or ctx is cancelled.
func (t *REPL) Run(ctx context.Context) error {
	t.sessionID = t.cfg.Bot.NewSession(ctx, "terminal")
	t.welcome()

	scanner := bufio.NewScanner(t.cfg.In)
	for {
		if ctx.Err() != nil {
			t.println(t.st.warn.Render("Interrompido. Até logo!"))
			return nil
		}
		t.print(t.st.label.Render("Você") + ": ")
		if !scanner.Scan() {
			t.println("")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := t.handle(ctx, line); quit {
			t.println(t.st.bot.Render("Até logo!"))
			return nil
		}
	}
}

func (t *REPL) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		return true
	case "/help":
		t.help()
	case "/status":
		t.status(ctx)
	case "/persona":
		t.persona()
	case "/history":
		t.history(ctx)
	case "/clear":
		t.clear(ctx)
	case "/stats":
		t.stats(ctx)
	case "/upload":
		t.upload(ctx, strings.TrimSpace(arg))
	default:
		t.message(ctx, line)
	}
	return false
}

func (t *REPL) message(ctx context.Context, text string) {
	reply, err := t.cfg.Bot.Process(ctx, bot.Request{
		SessionID:   t.sessionID,
		Message:     text,
		MessageType: "texto",
	})
	if err != nil {
		t.println(t.st.err.Render("Erro: " + err.Error()))
		return
	}
	name := t.cfg.Persona.Current().Name
	t.println(t.st.bot.Render(name + ": " + reply.Text))
	t.println(t.st.intent.Render("Intenção detectada: " + string(reply.Intent)))
	if reply.Err != nil {
		t.log.Warn("turn completed with errors", logger.ErrorField(reply.Err))
	}
}

func (t *REPL) welcome() {
	p := t.cfg.Persona.Current()
	body := strings.Join([]string{
		t.st.title.Render(fmt.Sprintf("%s - %s, %s", p.Name, p.Role, p.Company)),
		"",
		"Digite suas mensagens normalmente ou use /help.",
	}, "\n")
	t.println(t.st.panel.Render(body))
}

var commands = [][2]string{
	{"/help", "mostra esta ajuda"},
	{"/status", "mostra o status do sistema"},
	{"/persona", "mostra a persona ativa"},
	{"/upload <arquivo>", "importa conversas (.txt) ou documentos (.txt, .md, .csv, .pdf)"},
	{"/history", "mostra as últimas mensagens desta sessão"},
	{"/clear", "limpa o histórico desta sessão"},
	{"/stats", "mostra estatísticas do banco"},
	{"/quit, /exit", "sai do programa"},
}

func (t *REPL) help() {
	t.println(t.st.title.Render("Comandos"))
	for _, c := range commands {
		t.println(fmt.Sprintf("  %-18s %s", c[0], c[1]))
	}
}

func (t *REPL) status(ctx context.Context) {
	rows := [][2]string{
		{"sessão", t.sessionID},
		{"mensagens na sessão", fmt.Sprint(len(t.cfg.Sessions.History(ctx, t.sessionID)))},
	}
	if t.cfg.Stats != nil {
		if st, err := t.cfg.Stats.Stats(ctx); err == nil {
			rows = append(rows, [2]string{"documentos", fmt.Sprint(st.Documents)})
		} else {
			rows = append(rows, [2]string{"banco", "indisponível: " + err.Error()})
		}
	}
	if t.cfg.Status != nil {
		rows = append(rows, t.cfg.Status()...)
	}
	t.table("Status", rows)
}

func (t *REPL) persona() {
	p := t.cfg.Persona.Current()
	t.table("Persona", [][2]string{
		{"nome", p.Name},
		{"empresa", p.Company},
		{"cargo", p.Role},
		{"tom", p.Tone},
		{"estilo", p.Style},
		{"especialidades", strings.Join(p.Specialties, ", ")},
	})
}

func (t *REPL) history(ctx context.Context) {
	entries := t.cfg.Sessions.History(ctx, t.sessionID)
	if len(entries) == 0 {
		t.println(t.st.warn.Render("Nenhum histórico nesta sessão"))
		return
	}
	if len(entries) > historyShown {
		entries = entries[len(entries)-historyShown:]
	}
	name := t.cfg.Persona.Current().Name
	for _, e := range entries {
		if e.Role == session_manager.RoleUser {
			t.println(t.st.user.Render("Você: " + e.Content))
		} else {
			t.println(t.st.bot.Render(name + ": " + e.Content))
		}
	}
}

func (t *REPL) clear(ctx context.Context) {
	if err := t.cfg.Sessions.Clear(ctx, t.sessionID); err != nil {
		t.println(t.st.warn.Render("Nada para limpar: " + err.Error()))
		return
	}
	t.println(t.st.ok.Render("Histórico da conversa limpo"))
}

func (t *REPL) stats(ctx context.Context) {
	if t.cfg.Stats == nil {
		t.println(t.st.warn.Render("Estatísticas indisponíveis"))
		return
	}
	st, err := t.cfg.Stats.Stats(ctx)
	if err != nil {
		t.println(t.st.err.Render("Erro ao obter estatísticas: " + err.Error()))
		return
	}
	rows := [][2]string{
		{"conversas", fmt.Sprint(st.TotalConversations)},
		{"documentos", fmt.Sprint(st.Documents)},
		{"memória", fmt.Sprint(st.MemoryEntries)},
	}
	if st.LastConversation != nil {
		rows = append(rows, [2]string{"última conversa", st.LastConversation.Local().Format("02/01/2006 15:04")})
	}
	for _, ic := range st.TopIntents {
		rows = append(rows, [2]string{"intenção " + ic.Intent, fmt.Sprint(ic.Count)})
	}
	t.table("Estatísticas", rows)
}

func (t *REPL) upload(ctx context.Context, path string) {
	if path == "" {
		t.println(t.st.warn.Render("Uso: /upload <arquivo>"))
		return
	}
	if t.cfg.Uploader == nil {
		t.println(t.st.warn.Render("Upload indisponível"))
		return
	}
	res, err := t.cfg.Uploader.UploadFile(ctx, path)
	if err != nil {
		t.println(t.st.err.Render("Erro ao processar arquivo: " + err.Error()))
		return
	}
	switch res.Kind {
	case ingest.UploadTraining:
		r := res.Training
		t.println(t.st.ok.Render(fmt.Sprintf("%s: %d pares encontrados, %d novos, %d repetidos",
			r.Filename, r.Found, r.Inserted, r.Skipped)))
		for _, e := range r.Errors {
			t.println(t.st.err.Render("  " + e))
		}
	case ingest.UploadDocument:
		d := res.Document
		t.println(t.st.ok.Render(fmt.Sprintf("%s processado: tipo %s, %d palavras", d.Filename, d.FileType, d.WordCount)))
		t.println("Prévia: " + d.Preview)
	}
}

func (t *REPL) table(title string, rows [][2]string) {
	lines := []string{t.st.title.Render(title)}
	for _, r := range rows {
		lines = append(lines, t.st.label.Render(r[0]+":")+" "+r[1])
	}
	t.println(t.st.panel.Render(strings.Join(lines, "\n")))
}

func (t *REPL) print(s string)   { _, _ = io.WriteString(t.cfg.Out, s) }
func (t *REPL) println(s string) { _, _ = io.WriteString(t.cfg.Out, s+"\n") }
