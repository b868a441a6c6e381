// Package config holds the bot's application configuration. Values come from
// an optional YAML file overlaid by environment variables; see pkg/config.
package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/sdr_chatbot/internal/llm"
	pkgconfig "github.com/lewisedginton/sdr_chatbot/pkg/config"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// AppConfig is everything the sdrbot binary reads at start.
type AppConfig struct {
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"sdrbot"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	pkgconfig.CommonConfig `yaml:",inline"`
	LogFormat              string `env:"LOG_FORMAT" yaml:"log_format" default:"json"`

	Persona   PersonaConfig              `yaml:"persona"`
	LLM       LLMConfig                  `yaml:"llm"`
	OpenAI    OpenAIConfig               `yaml:"openai"`
	Anthropic AnthropicConfig            `yaml:"anthropic"`
	Database  DatabaseConfig             `yaml:"database"`
	CRM       CRMConfig                  `yaml:"crm"`
	Telegram  TelegramConfig             `yaml:"telegram"`
	Slack     SlackConfig                `yaml:"slack"`
	Storage   StorageConfig              `yaml:"storage"`
	Media     MediaConfig                `yaml:"media"`
	HTTP      pkgconfig.HTTPServerConfig `yaml:"http"`
	Metrics   pkgconfig.MetricsConfig    `yaml:"metrics"`
}

// Load reads path (optional) and the environment into a validated AppConfig.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.GetConfig(&cfg, path, false); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c AppConfig) Validate() error {
	var result error
	for _, v := range []pkgconfig.Validator{
		c.CommonConfig, c.LLMSection(), c.Database, c.CRM, c.Slack, c.Storage, c.HTTP, c.Metrics,
	} {
		if err := v.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.LogFormat))
	}
	return result
}

// LLMSection bundles the provider choice with the credentials it needs so
// they validate together.
func (c AppConfig) LLMSection() LLMSelection {
	return LLMSelection{LLM: c.LLM, OpenAI: c.OpenAI, Anthropic: c.Anthropic}
}

// GetLogLevel returns the parsed logger level.
func (c AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}

// IsProduction reports whether ENVIRONMENT is production.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// LogConfig logs the loaded configuration without secrets.
func (c AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("environment", c.Environment),
		logger.StringField("log_level", c.LogLevel),
		logger.StringField("persona", c.Persona.Name),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.StringField("database_driver", c.Database.Driver),
		logger.BoolField("crm_enabled", c.CRM.Enabled),
		logger.DurationField("crm_poll_interval", c.CRM.PollInterval),
		logger.BoolField("telegram_enabled", c.Telegram.Enabled()),
		logger.BoolField("slack_enabled", c.Slack.Enabled()),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.IntField("http_port", c.HTTP.Port),
		logger.BoolField("metrics_enabled", c.Metrics.Enabled),
	)
}

// Summary renders the configuration for the `config` command. Secrets are
// reported only as set or unset.
func (c AppConfig) Summary() [][2]string {
	return [][2]string{
		{"service", c.ServiceName},
		{"environment", c.Environment},
		{"log level", c.LogLevel},
		{"persona", fmt.Sprintf("%s (%s)", c.Persona.Name, c.Persona.Company)},
		{"llm provider", c.LLM.Provider},
		{"openai key", setOrUnset(c.OpenAI.APIKey)},
		{"anthropic key", setOrUnset(c.Anthropic.APIKey)},
		{"database", c.Database.Driver + " " + c.Database.Location()},
		{"crm", fmt.Sprintf("enabled=%t url=%s every %s", c.CRM.Enabled, c.CRM.URL, c.CRM.PollInterval)},
		{"crm token", setOrUnset(c.CRM.Token)},
		{"telegram", setOrUnset(c.Telegram.BotToken)},
		{"slack", setOrUnset(c.Slack.BotToken + c.Slack.AppToken)},
		{"storage", c.Storage.Backend + " " + c.Storage.Location()},
		{"pdftotext", c.Media.PDFToTextBin},
		{"http", c.HTTP.Addr()},
		{"metrics", fmt.Sprintf("enabled=%t port=%d", c.Metrics.Enabled, c.Metrics.Port)},
	}
}

func setOrUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

// provider constants are shared with the llm package.
var providers = []string{llm.ProviderNone, llm.ProviderOpenAI, llm.ProviderAnthropic}
