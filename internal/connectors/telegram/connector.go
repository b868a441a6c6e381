// Package telegram lets leads talk to the SDR through a Telegram bot. Text,
// voice notes and PDF documents are accepted; each chat keeps one session.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Message kinds, matching the pipeline's message types.
const (
	KindText  = "texto"
	KindAudio = "audio"
	KindPDF   = "pdf"
)

const (
	replyFailed     = "Desculpe, tive um problema para processar sua mensagem. Pode tentar de novo?"
	replyUnreadable = "Não consegui abrir o arquivo que você enviou. Pode me escrever o que precisa?"
)

// API is the part of the Telegram client the connector uses.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// Resolver turns voice notes and PDFs into text.
type Resolver interface {
	Resolve(ctx context.Context, kind, content, url string) (string, error)
}

// Message is one inbound lead message, already resolved to text.
type Message struct {
	SessionID   string
	LeadID      string
	ContactName string
	Kind        string
	Text        string
}

// Handler produces the reply for a message.
type Handler func(ctx context.Context, msg Message) (string, error)

// Connector represents the Telegram connector
type Connector struct {
	api      API
	handler  Handler
	resolver Resolver
	commands *CommandRegistry
	log      logger.Logger
}

// Config holds configuration for the Telegram connector
type Config struct {
	BotToken string // Bot token from @BotFather
	Debug    bool   // Enable debug logging
	Handler  Handler
	// Resolver is optional; without it voice notes and PDFs are refused.
	Resolver Resolver
	// Commands handled before the pipeline sees a message.
	Commands CommandSet
	Logger   logger.Logger
}

// NewConnector creates a connector polling Telegram with cfg.BotToken.
func NewConnector(cfg Config) (*Connector, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	c := newConnector(cfg, nil)

	opts := []bot.Option{
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			c.handleUpdate(ctx, update)
		}),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	c.api = b
	c.log.Info("Telegram bot initialized")
	return c, nil
}

func newConnector(cfg Config, api API) *Connector {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	c := &Connector{
		api:      api,
		handler:  cfg.Handler,
		resolver: cfg.Resolver,
		log:      cfg.Logger.WithFields(logger.StringField("connector", "telegram")),
	}
	c.setupCommands(cfg.Commands)
	return c
}

// Start polls for updates until ctx is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	b, ok := c.api.(*bot.Bot)
	if !ok {
		return fmt.Errorf("telegram connector was not created with NewConnector")
	}
	c.log.Info("Starting Telegram bot polling")
	b.Start(ctx)
	c.log.Info("Telegram bot polling stopped")
	return nil
}

// SessionID is the session used for a chat.
func SessionID(chatID int64) string {
	return "telegram_" + strconv.FormatInt(chatID, 10)
}

// handleUpdate answers one update. Errors are reported to the lead, never
// returned, so a bad message cannot stop the poller.
func (c *Connector) handleUpdate(ctx context.Context, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	// Skip messages from bots to avoid loops
	if msg.From.IsBot {
		return
	}
	log := c.log.WithFields(logger.Int64Field("chat_id", msg.Chat.ID))

	if c.commands.IsCommand(msg.Text) {
		c.send(ctx, msg.Chat.ID, c.commands.Handle(ctx, msg))
		return
	}

	kind, text, fileID := classify(msg)
	if text == "" && fileID == "" {
		log.Debug("Skipping update without usable content")
		return
	}
	if fileID != "" {
		resolved, err := c.resolveFile(ctx, kind, text, fileID)
		if err != nil {
			log.Warn("Could not read attachment", logger.StringField("kind", kind), logger.ErrorField(err))
			c.send(ctx, msg.Chat.ID, replyUnreadable)
			return
		}
		text = resolved
	}

	reply, err := c.handler(ctx, Message{
		SessionID:   SessionID(msg.Chat.ID),
		LeadID:      "telegram_" + strconv.FormatInt(msg.From.ID, 10),
		ContactName: contactName(msg.From),
		Kind:        kind,
		Text:        text,
	})
	if err != nil {
		log.Error("Failed to process message", logger.ErrorField(err))
		reply = replyFailed
	}
	c.send(ctx, msg.Chat.ID, reply)
}

func (c *Connector) resolveFile(ctx context.Context, kind, caption, fileID string) (string, error) {
	if c.resolver == nil {
		return "", fmt.Errorf("no resolver for %s", kind)
	}
	file, err := c.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("failed to get file: %w", err)
	}
	return c.resolver.Resolve(ctx, kind, caption, c.api.FileDownloadLink(file))
}

func (c *Connector) send(ctx context.Context, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if _, err := c.api.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		c.log.Error("Error sending message to Telegram", logger.Int64Field("chat_id", chatID), logger.ErrorField(err))
	}
}

// classify picks the message kind. Attachments carry a file id; the caption
// travels with them.
func classify(msg *models.Message) (kind, text, fileID string) {
	switch {
	case msg.Voice != nil:
		return KindAudio, msg.Caption, msg.Voice.FileID
	case msg.Audio != nil:
		return KindAudio, msg.Caption, msg.Audio.FileID
	case msg.Document != nil && msg.Document.MimeType == "application/pdf":
		return KindPDF, msg.Caption, msg.Document.FileID
	default:
		return KindText, strings.TrimSpace(msg.Text), ""
	}
}

func contactName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
