package telegram

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"
)

const helpText = `Comandos disponíveis:
/start - apresentação
/novo - começar uma nova conversa
/ajuda - mostrar esta mensagem

Ou simplesmente me conte o que você precisa.`

// CommandSet supplies what the bot commands need from the rest of the bot.
// Nil funcs disable the matching command.
type CommandSet struct {
	// Greeting is the persona's introduction.
	Greeting func() string
	// Reset clears the history of a session.
	Reset func(ctx context.Context, sessionID string) error
}

// CommandHandler handles a specific Telegram bot command
type CommandHandler func(ctx context.Context, msg *models.Message) (string, error)

// CommandRegistry manages bot command handlers
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry
func (r *CommandRegistry) Register(command string, handler CommandHandler) {
	r.handlers[command] = handler
}

// IsCommand checks if a message is a command
func (r *CommandRegistry) IsCommand(text string) bool {
	return strings.HasPrefix(text, "/")
}

// Handle runs the command in msg and returns the text to send back.
func (r *CommandRegistry) Handle(ctx context.Context, msg *models.Message) string {
	command := parseCommand(msg.Text)
	handler, exists := r.handlers[command]
	if !exists {
		return "Comando desconhecido: " + command + "\n\n" + helpText
	}
	reply, err := handler(ctx, msg)
	if err != nil {
		return "Não consegui executar " + command + ". Tente novamente em instantes."
	}
	return reply
}

// parseCommand returns "/cmd" from "/cmd@BotName args".
func parseCommand(text string) string {
	command := strings.Fields(text)[0]
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}
	return strings.ToLower(command)
}

// setupCommands initializes the command registry with all available commands
func (c *Connector) setupCommands(set CommandSet) {
	c.commands = NewCommandRegistry()

	help := func(context.Context, *models.Message) (string, error) { return helpText, nil }
	c.commands.Register("/ajuda", help)
	c.commands.Register("/help", help)

	if set.Greeting != nil {
		c.commands.Register("/start", func(context.Context, *models.Message) (string, error) {
			return set.Greeting() + "\n\nComo posso ajudar você hoje?", nil
		})
	}
	if set.Reset != nil {
		c.commands.Register("/novo", func(ctx context.Context, msg *models.Message) (string, error) {
			if err := set.Reset(ctx, SessionID(msg.Chat.ID)); err != nil {
				return "", err
			}
			return "Conversa reiniciada. Em que posso ajudar?", nil
		})
	}
}
