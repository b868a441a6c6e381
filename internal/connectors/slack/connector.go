// Package slack lets leads reach the SDR from a Slack workspace over Socket
// Mode: direct messages and @mentions are answered in place.
package slack

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

const replyFailed = "Desculpe, tive um problema para processar sua mensagem. Pode tentar de novo?"

// API is the part of the Slack client the connector uses.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Message is one inbound lead message.
type Message struct {
	SessionID string
	LeadID    string
	Channel   string
	Text      string
}

// Handler produces the reply for a message.
type Handler func(ctx context.Context, msg Message) (string, error)

// Connector represents the Slack Socket Mode connector
type Connector struct {
	api        API
	socketMode *socketmode.Client
	handler    Handler
	commands   *CommandRegistry
	log        logger.Logger
}

// Config holds configuration for the Slack connector
type Config struct {
	BotToken string // xoxb-*
	AppToken string // xapp-*
	Debug    bool
	Handler  Handler
	Commands CommandSet
	Logger   logger.Logger
}

// NewConnector creates a new Slack connector
func NewConnector(cfg Config) (*Connector, error) {
	if !strings.HasPrefix(cfg.BotToken, "xoxb-") {
		return nil, fmt.Errorf("invalid bot token format, expected xoxb-*")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("invalid app token format, expected xapp-*")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	client := slack.New(
		cfg.BotToken,
		slack.OptionAppLevelToken(cfg.AppToken),
		slack.OptionDebug(cfg.Debug),
	)
	c := newConnector(cfg, client)
	c.socketMode = socketmode.New(client, socketmode.OptionDebug(cfg.Debug))
	return c, nil
}

func newConnector(cfg Config, api API) *Connector {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	c := &Connector{
		api:     api,
		handler: cfg.Handler,
		log:     cfg.Logger.WithFields(logger.StringField("connector", "slack")),
	}
	c.setupCommands(cfg.Commands)
	return c
}

// Start runs the Socket Mode connection until ctx is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	if c.socketMode == nil {
		return fmt.Errorf("slack connector was not created with NewConnector")
	}
	c.log.Info("Starting Slack Socket Mode connector")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case envelope, ok := <-c.socketMode.Events:
				if !ok {
					return
				}
				c.dispatch(ctx, envelope)
			}
		}
	}()

	err := c.socketMode.RunContext(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Connector) dispatch(ctx context.Context, envelope socketmode.Event) {
	switch envelope.Type {
	case socketmode.EventTypeConnecting:
		c.log.Info("Connecting to Slack with Socket Mode")

	case socketmode.EventTypeConnectionError:
		c.log.Warn("Slack connection failed", logger.StringField("data", fmt.Sprintf("%v", envelope.Data)))

	case socketmode.EventTypeConnected:
		c.log.Info("Connected to Slack with Socket Mode")

	case socketmode.EventTypeEventsAPI:
		event, ok := envelope.Data.(slackevents.EventsAPIEvent)
		if !ok {
			c.log.Debug("Ignored event", logger.StringField("type", string(envelope.Type)))
			return
		}
		c.socketMode.Ack(*envelope.Request)
		c.handleEvent(ctx, event)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := envelope.Data.(slack.SlashCommand)
		if !ok {
			c.socketMode.Ack(*envelope.Request)
			return
		}
		c.socketMode.Ack(*envelope.Request, map[string]any{"text": c.commands.Handle(ctx, cmd)})

	case socketmode.EventTypeInteractive:
		c.socketMode.Ack(*envelope.Request)
	}
}

// handleEvent routes DMs and mentions to the pipeline.
func (c *Connector) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// Skip messages from bots to avoid loops
		if ev.BotID != "" || ev.SubType != "" {
			return
		}
		// Only direct messages; channels go through mentions
		if !strings.HasPrefix(ev.Channel, "D") {
			return
		}
		c.answer(ctx, ev.User, ev.Channel, ev.Text)
	case *slackevents.AppMentionEvent:
		c.answer(ctx, ev.User, ev.Channel, removeMentions(ev.Text))
	}
}

// SessionID is the session used for a user in a channel.
func SessionID(user, channel string) string {
	return fmt.Sprintf("slack_%s_%s", user, channel)
}

func (c *Connector) answer(ctx context.Context, user, channel, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	log := c.log.WithFields(logger.StringField("channel", channel), logger.StringField("user", user))

	reply, err := c.handler(ctx, Message{
		SessionID: SessionID(user, channel),
		LeadID:    "slack_" + user,
		Channel:   channel,
		Text:      text,
	})
	if err != nil {
		log.Error("Failed to process message", logger.ErrorField(err))
		reply = replyFailed
	}
	if reply == "" {
		return
	}
	if _, _, err := c.api.PostMessageContext(ctx, channel, slack.MsgOptionText(reply, false)); err != nil {
		log.Error("Error sending message to Slack", logger.ErrorField(err))
	}
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// removeMentions strips every <@U123> mention from text.
func removeMentions(text string) string {
	return strings.Join(strings.Fields(mentionPattern.ReplaceAllString(text, " ")), " ")
}
