// Package server assembles the bot from configuration and runs its
// long-lived surfaces: the HTTP API, the metrics listener and the CRM poller.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-multierror"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/lewisedginton/sdr_chatbot/internal/bot"
	appconfig "github.com/lewisedginton/sdr_chatbot/internal/config"
	"github.com/lewisedginton/sdr_chatbot/internal/connectors/crm"
	slackconn "github.com/lewisedginton/sdr_chatbot/internal/connectors/slack"
	"github.com/lewisedginton/sdr_chatbot/internal/connectors/telegram"
	"github.com/lewisedginton/sdr_chatbot/internal/ingest"
	"github.com/lewisedginton/sdr_chatbot/internal/llm"
	"github.com/lewisedginton/sdr_chatbot/internal/llm/anthropic"
	"github.com/lewisedginton/sdr_chatbot/internal/llm/openai"
	"github.com/lewisedginton/sdr_chatbot/internal/media"
	"github.com/lewisedginton/sdr_chatbot/internal/memory_service"
	"github.com/lewisedginton/sdr_chatbot/internal/monitoring"
	"github.com/lewisedginton/sdr_chatbot/internal/persona"
	"github.com/lewisedginton/sdr_chatbot/internal/responder"
	"github.com/lewisedginton/sdr_chatbot/internal/session_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/storage_manager"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/httpmiddleware"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
	"github.com/lewisedginton/sdr_chatbot/pkg/metrics"
	"github.com/lewisedginton/sdr_chatbot/pkg/utils"
)

// Server encapsulates the bot's components and their lifecycle.
type Server struct {
	cfg            *appconfig.AppConfig
	log            logger.Logger
	store          *store.Store
	storageManager *storage_manager.StorageManager
	sessionManager session_manager.Manager
	personas       *persona.Manager
	leadMemory     *memory_service.Service
	library        *ingest.Library
	importer       *ingest.Importer
	documents      *ingest.DocumentProcessor
	uploader       *ingest.Uploader
	resolver       *media.Resolver
	metrics        *metrics.Metrics
	pollMetrics    *monitoring.PollMetrics
	health         *monitoring.HealthMonitor
	bot            *bot.Bot
	drafter        bot.Drafter
}

// New builds every component named by cfg. The caller must Close the
// returned server.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log}

	var err error
	if s.storageManager, err = createStorageManager(ctx, cfg, log); err != nil {
		return nil, err
	}

	if s.store, err = store.Open(ctx, cfg.Database.StoreConfig(), log); err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	if err := s.init(ctx); err != nil {
		_ = s.store.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(ctx context.Context) error {
	cfg, log := s.cfg, s.log

	var err error
	s.sessionManager, err = session_manager.New(session_manager.Config{
		SnapshotFile: cfg.Storage.HistorySnapshot,
		FileProvider: s.historyProvider(),
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	s.personas = persona.NewManager(s.store, cfg.Persona.Base(), log)
	if _, err := s.personas.Load(ctx); err != nil {
		log.Warn("Using configured persona", logger.ErrorField(err))
	}

	s.leadMemory = memory_service.New(memory_service.Config{Store: s.store, Logger: log})

	s.library = ingest.NewLibrary(s.storageManager.GetProvider(storage_manager.NamespaceExamples), log)
	s.importer = ingest.NewImporter(s.store, s.storageManager.GetProvider(storage_manager.NamespaceUploads), log)
	pdf := media.NewPDFExtractor(cfg.Media.PDFToTextBin)
	s.documents = ingest.NewDocumentProcessor(s.store, pdf)
	s.uploader = ingest.NewUploader(s.importer, s.documents)

	if s.drafter, err = createDrafter(cfg, log); err != nil {
		return err
	}
	if s.resolver, err = createResolver(cfg, pdf, s.library, log); err != nil {
		return err
	}

	s.metrics = metrics.New(metrics.Options{HTTP: cfg.Metrics.Enabled, Jobs: cfg.Metrics.Enabled}, log)
	botMetrics, err := monitoring.NewBotMetrics(s.metrics)
	if err != nil {
		return fmt.Errorf("failed to register bot metrics: %w", err)
	}
	if s.pollMetrics, err = monitoring.NewPollMetrics(s.metrics); err != nil {
		return fmt.Errorf("failed to register poll metrics: %w", err)
	}

	hc := monitoring.Config{Logger: log, Store: s.store}
	if cfg.CRM.Enabled {
		hc.CRMURL = cfg.CRM.URL
	}
	s.health = monitoring.NewHealthMonitor(hc)

	bc := bot.Config{
		Store:    s.store,
		Persona:  s.personas,
		Sessions: s.sessionManager,
		Selector: responder.New(nil),
		Memory:   s.leadMemory,
		Observer: botMetrics,
		Logger:   log,
	}
	if s.drafter != nil {
		bc.Drafter, bc.Examples = s.drafter, s.library
	}
	if s.bot, err = bot.New(bc); err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	return nil
}

// historyProvider returns nil when snapshots are disabled.
func (s *Server) historyProvider() storage_manager.FileProvider {
	if s.cfg.Storage.HistorySnapshot == "" {
		return nil
	}
	return s.storageManager.GetProvider(storage_manager.NamespaceHistory)
}

func createStorageManager(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*storage_manager.StorageManager, error) {
	sm, err := storage_manager.New(ctx, cfg.Storage.ManagerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}
	log.Info("Storage manager created",
		logger.StringField("backend", string(sm.Backend())),
		logger.StringField("location", cfg.Storage.Location()))
	return sm, nil
}

// createDrafter returns nil when no language model is configured.
func createDrafter(cfg *appconfig.AppConfig, log logger.Logger) (bot.Drafter, error) {
	var client llm.Client
	switch cfg.LLM.Provider {
	case llm.ProviderOpenAI:
		opts := []openaiopt.RequestOption{openaiopt.WithMaxRetries(cfg.OpenAI.MaxRetries)}
		if cfg.OpenAI.APIBaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(cfg.OpenAI.APIBaseURL))
		}
		m, err := openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
		}
		client = m
	case llm.ProviderAnthropic:
		opts := []anthropicopt.RequestOption{anthropicopt.WithMaxRetries(cfg.Anthropic.MaxRetries)}
		if cfg.Anthropic.APIBaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(cfg.Anthropic.APIBaseURL))
		}
		m, err := anthropic.NewClaudeModel(cfg.Anthropic.APIKey, cfg.Anthropic.Model, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Claude model: %w", err)
		}
		client = m
	default:
		log.Info("No language model configured, replies come from stored turns and templates")
		return nil, nil
	}

	log.Info("Language model drafter enabled", logger.StringField("model", client.Name()))
	return llm.NewResponder(client, llm.ResponderConfig{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, log), nil
}

// createResolver wires transcription only when an OpenAI key is present.
func createResolver(cfg *appconfig.AppConfig, pdf *media.PDFExtractor, sink media.TranscriptSink, log logger.Logger) (*media.Resolver, error) {
	mc := media.Config{
		PDF:              pdf,
		Sink:             sink,
		MaxDownloadBytes: cfg.Media.MaxDownloadBytes,
		Logger:           log,
	}
	if cfg.OpenAI.APIKey != "" {
		opts := []openaiopt.RequestOption{openaiopt.WithMaxRetries(cfg.OpenAI.MaxRetries)}
		if cfg.OpenAI.APIBaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(cfg.OpenAI.APIBaseURL))
		}
		t, err := openai.NewTranscriber(cfg.OpenAI.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create transcriber: %w", err)
		}
		mc.Transcriber = t
	}
	return media.NewResolver(mc), nil
}

// Bot returns the message pipeline.
func (s *Server) Bot() *bot.Bot { return s.bot }

func (s *Server) Store() *store.Store { return s.store }
func (s *Server) Sessions() session_manager.Manager { return s.sessionManager }
func (s *Server) Personas() *persona.Manager { return s.personas }
func (s *Server) Importer() *ingest.Importer { return s.importer }
func (s *Server) Uploader() *ingest.Uploader { return s.uploader }
func (s *Server) Library() *ingest.Library { return s.library }
func (s *Server) Config() *appconfig.AppConfig { return s.cfg }
func (s *Server) Health() *monitoring.HealthMonitor { return s.health }
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// DrafterName is the language model in use, or "" for none.
func (s *Server) DrafterName() string {
	if s.drafter == nil {
		return ""
	}
	return s.drafter.Name()
}

// LeadMemory returns the cross-session lead memory.
func (s *Server) LeadMemory() *memory_service.Service { return s.leadMemory }

// Connector builds the CRM poller. It fails when the CRM is not configured.
func (s *Server) Connector() (*crm.Connector, error) {
	cfg := s.cfg.CRM
	client, err := crm.NewClient(crm.ClientConfig{URL: cfg.URL, Token: cfg.Token, Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create CRM client: %w", err)
	}
	return crm.NewConnector(crm.Config{
		API:      client,
		Resolver: s.resolver,
		Handler:  s.handleCRMMessage,
		Interval: cfg.PollInterval,
		Logger:   s.log,
		OnPoll:   s.pollMetrics.OnPoll,
	})
}

// handleCRMMessage answers one polled message. Each contact keeps a single
// session so history carries across polls.
func (s *Server) handleCRMMessage(ctx context.Context, msg crm.Message, text string) (string, error) {
	return s.answer(ctx, bot.Request{
		SessionID:   "crm_" + msg.ContactID,
		Message:     text,
		MessageType: msg.Type,
		LeadID:      msg.ContactID,
		ContactName: msg.ContactName,
		Context:     map[string]any{"crm_message_id": msg.ID},
	})
}

// TelegramConnector builds the Telegram channel. It contacts Telegram to
// check the token.
func (s *Server) TelegramConnector() (*telegram.Connector, error) {
	return telegram.NewConnector(telegram.Config{
		BotToken: s.cfg.Telegram.BotToken,
		Debug:    s.cfg.Telegram.Debug,
		Handler:  s.handleTelegramMessage,
		Resolver: s.resolver,
		Commands: telegram.CommandSet{Greeting: s.greeting, Reset: s.resetSession},
		Logger:   s.log,
	})
}

func (s *Server) handleTelegramMessage(ctx context.Context, msg telegram.Message) (string, error) {
	return s.answer(ctx, bot.Request{
		SessionID:   msg.SessionID,
		Message:     msg.Text,
		MessageType: msg.Kind,
		LeadID:      msg.LeadID,
		ContactName: msg.ContactName,
		Context:     map[string]any{"channel": "telegram"},
	})
}

// SlackConnector builds the Slack channel.
func (s *Server) SlackConnector() (*slackconn.Connector, error) {
	return slackconn.NewConnector(slackconn.Config{
		BotToken: s.cfg.Slack.BotToken,
		AppToken: s.cfg.Slack.AppToken,
		Debug:    s.cfg.Slack.Debug,
		Handler:  s.handleSlackMessage,
		Commands: slackconn.CommandSet{Reset: s.resetSession},
		Logger:   s.log,
	})
}

func (s *Server) handleSlackMessage(ctx context.Context, msg slackconn.Message) (string, error) {
	return s.answer(ctx, bot.Request{
		SessionID:   msg.SessionID,
		Message:     msg.Text,
		MessageType: media.KindText,
		LeadID:      msg.LeadID,
		Context:     map[string]any{"channel": "slack", "slack_channel": msg.Channel},
	})
}

func (s *Server) answer(ctx context.Context, req bot.Request) (string, error) {
	reply, err := s.bot.Process(ctx, req)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// greeting is the persona's introduction for chat /start commands.
func (s *Server) greeting() string {
	p := s.personas.Current()
	if p.Greeting != "" {
		return p.Greeting
	}
	return fmt.Sprintf("Olá! Aqui é %s da %s.", p.Name, p.Company)
}

// resetSession clears a chat's history. A chat with no history is already
// reset.
func (s *Server) resetSession(ctx context.Context, sessionID string) error {
	err := s.sessionManager.Clear(ctx, sessionID)
	if errors.Is(err, session_manager.ErrSessionNotFound) {
		return nil
	}
	return err
}

// starter is a long-running inbound channel.
type starter interface {
	Start(ctx context.Context) error
}

// channels builds every configured inbound channel.
func (s *Server) channels() ([]starter, error) {
	var out []starter
	if s.cfg.CRM.Enabled {
		conn, err := s.Connector()
		if err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	if s.cfg.Telegram.Enabled() {
		conn, err := s.TelegramConnector()
		if err != nil {
			return nil, fmt.Errorf("failed to create Telegram connector: %w", err)
		}
		out = append(out, conn)
	}
	if s.cfg.Slack.Enabled() {
		conn, err := s.SlackConnector()
		if err != nil {
			return nil, fmt.Errorf("failed to create Slack connector: %w", err)
		}
		out = append(out, conn)
	}
	return out, nil
}

// Run serves the HTTP API, the metrics listener when enabled and every
// configured channel (CRM poller, Telegram, Slack), until ctx is cancelled
// or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	conns, err := s.channels()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chans := []chan error{utils.Go(func() error { return s.ListenHTTP(ctx) })}
	if s.cfg.Metrics.Enabled {
		chans = append(chans, utils.Go(func() error { return s.metrics.Listen(ctx, s.cfg.Metrics.Port) }))
	}
	for _, conn := range conns {
		chans = append(chans, utils.Go(func() error { return conn.Start(ctx) }))
	}

	s.log.Info("SDR bot running", logger.IntField("components", len(chans)))
	merged := utils.MergeErrorChans(chans...)
	err = utils.FirstError(ctx, merged)
	cancel()
	// wait for every component to stop before the store is closed
	for e := range merged {
		if err == nil {
			err = e
		}
	}
	return err
}

// ListenHTTP runs the API listener until ctx is cancelled.
func (s *Server) ListenHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.HTTP.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.HTTP.ReadTimeout(),
		WriteTimeout: s.cfg.HTTP.WriteTimeout(),
		IdleTimeout:  s.cfg.HTTP.IdleTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP API", logger.StringField("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http api: %w", err)
	case <-ctx.Done():
		s.log.Info("Shutting down HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http api shutdown: %w", err)
		}
		return nil
	}
}

// Router builds the API handler with the shared middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.Metrics = s.metrics.HTTPMiddleware()
	httpmiddleware.Apply(r, mw)

	s.health.Register(r)
	newAPI(s).routes(r)
	return r
}

// Close releases the database handle.
func (s *Server) Close() error {
	var result error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close store: %w", err))
		}
	}
	return result
}
