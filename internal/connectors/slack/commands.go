package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

const helpText = `*Comandos disponíveis:*

• */novo* - começar uma nova conversa
• */ajuda* - mostrar esta mensagem

Ou me mande uma mensagem direta contando o que você precisa.`

// CommandSet supplies what slash commands need from the rest of the bot.
type CommandSet struct {
	// Reset clears the history of a session. Nil disables /novo.
	Reset func(ctx context.Context, sessionID string) error
}

// CommandHandler handles a specific slash command
type CommandHandler func(ctx context.Context, cmd slack.SlashCommand) (string, error)

// CommandRegistry manages slash command handlers
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

// Handle runs cmd and returns the text to acknowledge it with.
func (r *CommandRegistry) Handle(ctx context.Context, cmd slack.SlashCommand) string {
	handler, exists := r.handlers[cmd.Command]
	if !exists {
		return fmt.Sprintf("Comando desconhecido: %s", cmd.Command)
	}
	text, err := handler(ctx, cmd)
	if err != nil {
		return fmt.Sprintf("Não consegui executar %s. Tente novamente em instantes.", cmd.Command)
	}
	return text
}

// setupCommands initialises the command registry with all available commands
func (c *Connector) setupCommands(set CommandSet) {
	c.commands = NewCommandRegistry()
	c.commands.Register("/ajuda", func(context.Context, slack.SlashCommand) (string, error) {
		return helpText, nil
	})
	if set.Reset != nil {
		c.commands.Register("/novo", func(ctx context.Context, cmd slack.SlashCommand) (string, error) {
			if err := set.Reset(ctx, SessionID(cmd.UserID, cmd.ChannelID)); err != nil {
				c.log.Error("Failed to reset session", logger.ErrorField(err))
				return "", err
			}
			return "Conversa reiniciada. Em que posso ajudar?", nil
		})
	}
}
