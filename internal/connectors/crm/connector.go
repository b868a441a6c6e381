package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// API is the part of Client the connector uses.
type API interface {
	FetchUnanswered(ctx context.Context) ([]Message, error)
	SendMessage(ctx context.Context, contactID, text string) error
}

// Resolver turns a message into text: audio is transcribed, PDFs are
// extracted, anything else returns content unchanged.
type Resolver interface {
	Resolve(ctx context.Context, kind, content, url string) (string, error)
}

// Handler produces the reply for a resolved message.
type Handler func(ctx context.Context, msg Message, text string) (string, error)

// Replies sent when a message cannot go through the pipeline.
const (
	ReplyUnreadable = "Não consegui abrir o arquivo que você enviou. Pode me escrever o que precisa?"
	ReplyFailed     = "Desculpe, tive um problema para processar sua mensagem. Pode tentar de novo?"
)

// PollResult summarises one poll. Fallbacks counts the replies in Replied
// that were an apology instead of a pipeline answer.
type PollResult struct {
	Fetched   int
	Replied   int
	Fallbacks int
	Failed    int
}

// Connector polls the CRM and answers each unanswered message.
type Connector struct {
	api      API
	resolver Resolver
	handler  Handler
	interval time.Duration
	log      logger.Logger
	onPoll   func(PollResult, error)
}

// Config holds configuration for the CRM connector
type Config struct {
	API      API
	Resolver Resolver
	Handler  Handler
	Interval time.Duration
	Logger   logger.Logger
	// OnPoll, when set, is called after every poll.
	OnPoll func(PollResult, error)
}

const defaultInterval = 30 * time.Second

func NewConnector(cfg Config) (*Connector, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("CRM API is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	return &Connector{
		api:      cfg.API,
		resolver: cfg.Resolver,
		handler:  cfg.Handler,
		interval: cfg.Interval,
		log:      cfg.Logger.WithFields(logger.StringField("connector", "crm")),
		onPoll:   cfg.OnPoll,
	}, nil
}

// Start polls immediately and then on every interval until ctx is done. A
// failed poll is logged and retried on the next tick.
func (c *Connector) Start(ctx context.Context) error {
	c.log.Info("starting CRM polling", logger.DurationField("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.PollOnce(ctx); err != nil && ctx.Err() == nil {
			c.log.Error("CRM poll failed", logger.ErrorField(err))
		}
		select {
		case <-ctx.Done():
			c.log.Info("CRM polling stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce fetches unanswered messages and replies to each. Failures on a
// single message are logged and counted; they do not stop the batch.
func (c *Connector) PollOnce(ctx context.Context) (PollResult, error) {
	var res PollResult
	msgs, err := c.api.FetchUnanswered(ctx)
	if err != nil {
		c.report(res, err)
		return res, err
	}
	res.Fetched = len(msgs)

	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		fallback, err := c.handle(ctx, msg)
		if err != nil {
			res.Failed++
			c.log.Error("failed to answer CRM message",
				logger.ErrorField(err),
				logger.StringField("message_id", msg.ID),
				logger.StringField("contact_id", msg.ContactID))
			continue
		}
		res.Replied++
		if fallback {
			res.Fallbacks++
		}
	}

	if res.Fetched > 0 {
		c.log.Info("CRM poll completed",
			logger.IntField("fetched", res.Fetched),
			logger.IntField("replied", res.Replied),
			logger.IntField("fallbacks", res.Fallbacks),
			logger.IntField("failed", res.Failed))
	}
	c.report(res, nil)
	return res, nil
}

// handle answers one message and reports whether the answer was a fallback.
// Attachments that cannot be read and pipeline errors still get a reply so
// the message leaves the unanswered queue.
func (c *Connector) handle(ctx context.Context, msg Message) (bool, error) {
	log := c.log.WithFields(logger.StringField("message_id", msg.ID))
	text := msg.Content
	if c.resolver != nil {
		url := ""
		switch msg.Type {
		case TypeAudio:
			url = msg.AudioURL
		case TypePDF:
			url = msg.PDFURL
		}
		resolved, err := c.resolver.Resolve(ctx, msg.Type, msg.Content, url)
		if err != nil {
			log.Warn("could not read message content", logger.StringField("type", msg.Type), logger.ErrorField(err))
			return true, c.api.SendMessage(ctx, msg.ContactID, ReplyUnreadable)
		}
		text = resolved
	}
	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("message %s has no text", msg.ID)
	}

	reply, err := c.handler(ctx, msg, text)
	if err != nil {
		log.Error("failed to process CRM message", logger.ErrorField(err))
		return true, c.api.SendMessage(ctx, msg.ContactID, ReplyFailed)
	}
	return false, c.api.SendMessage(ctx, msg.ContactID, reply)
}

func (c *Connector) report(res PollResult, err error) {
	if c.onPoll != nil {
		c.onPoll(res, err)
	}
}
