package config

import (
	"fmt"
	"time"
)

// HTTPServerConfig holds HTTP listener settings.
type HTTPServerConfig struct {
	Host                string `env:"HTTP_HOST" yaml:"host" default:"0.0.0.0"`
	Port                int    `env:"HTTP_PORT" yaml:"port" default:"8080"`
	ReadTimeoutSeconds  int    `env:"HTTP_READ_TIMEOUT_SECONDS" yaml:"read_timeout_seconds" default:"15"`
	WriteTimeoutSeconds int    `env:"HTTP_WRITE_TIMEOUT_SECONDS" yaml:"write_timeout_seconds" default:"60"`
	IdleTimeoutSeconds  int    `env:"HTTP_IDLE_TIMEOUT_SECONDS" yaml:"idle_timeout_seconds" default:"60"`
	// MaxBodyBytes caps inbound request bodies on the message API.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" yaml:"max_body_bytes" default:"65536"`
}

// Validate checks the port range.
func (h HTTPServerConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1-65535, got %d", h.Port)
	}
	return nil
}

// Addr is the listen address.
func (h HTTPServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

func (h HTTPServerConfig) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSeconds) * time.Second
}

func (h HTTPServerConfig) WriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeoutSeconds) * time.Second
}

func (h HTTPServerConfig) IdleTimeout() time.Duration {
	return time.Duration(h.IdleTimeoutSeconds) * time.Second
}
