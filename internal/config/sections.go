package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/sdr_chatbot/internal/llm"
	"github.com/lewisedginton/sdr_chatbot/internal/persona"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/internal/storage_manager"
)

// PersonaConfig seeds the persona when the database holds none.
type PersonaConfig struct {
	Name    string `env:"PERSONA_NAME" yaml:"name" default:"Gabriel"`
	Company string `env:"PERSONA_COMPANY" yaml:"company" default:"With Consultoria"`
	Role    string `env:"PERSONA_ROLE" yaml:"role" default:"SDR Especialista"`
}

// Base merges the overrides into the default persona. The stock greeting is
// rewritten when the name or company changes.
func (p PersonaConfig) Base() persona.Persona {
	base := persona.Default()
	renamed := (p.Name != "" && p.Name != base.Name) || (p.Company != "" && p.Company != base.Company)
	if p.Name != "" {
		base.Name = p.Name
	}
	if p.Company != "" {
		base.Company = p.Company
	}
	if p.Role != "" {
		base.Role = p.Role
	}
	if renamed {
		base.Greeting = fmt.Sprintf("Olá! Aqui é o %s da %s.", base.Name, base.Company)
	}
	return base
}

// LLMConfig selects the optional language model drafter.
type LLMConfig struct {
	Provider    string        `env:"LLM_PROVIDER" yaml:"provider" default:"none"`
	Temperature float64       `env:"LLM_TEMPERATURE" yaml:"temperature" default:"0.7"`
	MaxTokens   int64         `env:"LLM_MAX_TOKENS" yaml:"max_tokens" default:"1024"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" yaml:"timeout" default:"30s"`
}

type OpenAIConfig struct {
	APIKey     string `env:"OPENAI_API_KEY" yaml:"api_key"`
	Model      string `env:"OPENAI_MODEL" yaml:"model" default:"gpt-4"`
	APIBaseURL string `env:"OPENAI_API_URL" yaml:"api_base_url"`
	MaxRetries int    `env:"OPENAI_MAX_RETRIES" yaml:"max_retries" default:"2"`
}

type AnthropicConfig struct {
	APIKey     string `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model      string `env:"CLAUDE_MODEL" yaml:"model" default:"claude-sonnet-4-5-20250929"`
	APIBaseURL string `env:"ANTHROPIC_API_URL" yaml:"api_base_url"`
	MaxRetries int    `env:"ANTHROPIC_MAX_RETRIES" yaml:"max_retries" default:"2"`
}

// LLMSelection validates the provider against its credentials.
type LLMSelection struct {
	LLM       LLMConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

func (s LLMSelection) Validate() error {
	var result error
	if !slices.Contains(providers, s.LLM.Provider) {
		result = multierror.Append(result, fmt.Errorf("llm provider must be one of %v, got %q", providers, s.LLM.Provider))
	}
	if s.LLM.Provider == llm.ProviderOpenAI && s.OpenAI.APIKey == "" {
		result = multierror.Append(result, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
	}
	if s.LLM.Provider == llm.ProviderAnthropic && s.Anthropic.APIKey == "" {
		result = multierror.Append(result, fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic"))
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		result = multierror.Append(result, fmt.Errorf("llm temperature must be between 0 and 2, got %v", s.LLM.Temperature))
	}
	return result
}

// DatabaseConfig picks the conversation store.
type DatabaseConfig struct {
	Driver string `env:"DATABASE_DRIVER" yaml:"driver" default:"sqlite"`
	Path   string `env:"DATABASE_PATH" yaml:"path" default:"./data/sdrbot.db"`
	URL    string `env:"DATABASE_URL" yaml:"-"`
}

func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case store.DriverSQLite:
		if d.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case store.DriverPostgres:
		if d.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("database driver must be sqlite or postgres, got %q", d.Driver)
	}
	return nil
}

// StoreConfig converts to the store package's config.
func (d DatabaseConfig) StoreConfig() store.Config {
	return store.Config{Driver: d.Driver, Path: d.Path, URL: d.URL}
}

// Location names where the data lives without leaking credentials.
func (d DatabaseConfig) Location() string {
	if d.Driver == store.DriverPostgres {
		return "(DATABASE_URL)"
	}
	return d.Path
}

// CRMConfig drives the GraphQL poller.
type CRMConfig struct {
	Enabled      bool          `env:"CRM_ENABLED" yaml:"enabled" default:"false"`
	URL          string        `env:"CRM_GRAPHQL_URL" yaml:"url"`
	Token        string        `env:"CRM_TOKEN" yaml:"-"`
	PollInterval time.Duration `env:"CRM_POLL_INTERVAL" yaml:"poll_interval" default:"30s"`
	Timeout      time.Duration `env:"CRM_TIMEOUT" yaml:"timeout" default:"30s"`
}

func (c CRMConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	var result error
	if c.URL == "" {
		result = multierror.Append(result, fmt.Errorf("CRM_GRAPHQL_URL is required when the CRM poller is enabled"))
	}
	if c.Token == "" {
		result = multierror.Append(result, fmt.Errorf("CRM_TOKEN is required when the CRM poller is enabled"))
	}
	if c.PollInterval < time.Second {
		result = multierror.Append(result, fmt.Errorf("crm poll interval must be at least 1s, got %s", c.PollInterval))
	}
	return result
}

// StorageConfig locates example logs, uploads and history snapshots.
type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" yaml:"backend" default:"local"`
	LocalDir string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"./data"`
	S3Bucket string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`
	S3Region string `env:"STORAGE_S3_REGION" yaml:"s3_region"`
	// HistorySnapshot persists session history across restarts when set.
	HistorySnapshot string `env:"HISTORY_SNAPSHOT_FILE" yaml:"history_snapshot" default:"sessions.json"`
}

func (s StorageConfig) Validate() error {
	switch storage_manager.BackendType(s.Backend) {
	case storage_manager.BackendLocal:
		if s.LocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR is required for the local backend")
		}
	case storage_manager.BackendS3:
		if s.S3Bucket == "" {
			return fmt.Errorf("STORAGE_S3_BUCKET is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage backend must be local or s3, got %q", s.Backend)
	}
	return nil
}

// ManagerConfig converts to the storage manager's config.
func (s StorageConfig) ManagerConfig() storage_manager.Config {
	return storage_manager.Config{
		Backend: storage_manager.BackendType(s.Backend),
		BaseDir: s.LocalDir,
		Bucket:  s.S3Bucket,
		Prefix:  s.S3Prefix,
		Region:  s.S3Region,
	}
}

func (s StorageConfig) Location() string {
	if storage_manager.BackendType(s.Backend) == storage_manager.BackendS3 {
		return "s3://" + s.S3Bucket + "/" + s.S3Prefix
	}
	return s.LocalDir
}

// MediaConfig tunes attachment handling.
type MediaConfig struct {
	PDFToTextBin     string `env:"PDFTOTEXT_BIN" yaml:"pdftotext_bin" default:"pdftotext"`
	MaxDownloadBytes int64  `env:"MEDIA_MAX_DOWNLOAD_BYTES" yaml:"max_download_bytes" default:"26214400"`
}

// TelegramConfig holds Telegram-specific configuration
type TelegramConfig struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN" yaml:"-"`
	Debug    bool   `env:"TELEGRAM_DEBUG" yaml:"debug"`
}

// Enabled returns true if Telegram is configured with a bot token
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != ""
}

// SlackConfig holds Slack-specific configuration
type SlackConfig struct {
	BotToken string `env:"SLACK_BOT_TOKEN" yaml:"-"`
	AppToken string `env:"SLACK_APP_TOKEN" yaml:"-"`
	Debug    bool   `env:"SLACK_DEBUG" yaml:"debug"`
}

// Enabled returns true if Slack is configured with both tokens
func (c SlackConfig) Enabled() bool {
	return c.BotToken != "" && c.AppToken != ""
}

func (c SlackConfig) Validate() error {
	if c.BotToken == "" && c.AppToken == "" {
		return nil
	}
	var result error
	if !strings.HasPrefix(c.BotToken, "xoxb-") {
		result = multierror.Append(result, fmt.Errorf("SLACK_BOT_TOKEN must be a xoxb-* token"))
	}
	if !strings.HasPrefix(c.AppToken, "xapp-") {
		result = multierror.Append(result, fmt.Errorf("SLACK_APP_TOKEN must be a xapp-* token"))
	}
	return result
}
