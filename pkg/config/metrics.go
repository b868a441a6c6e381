package config

import "fmt"

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" yaml:"enabled" default:"false"`
	Port    int  `env:"METRICS_PORT" yaml:"port" default:"9090"`
}

// Validate only checks the port when the listener is enabled.
func (m MetricsConfig) Validate() error {
	if m.Enabled && (m.Port < 1 || m.Port > 65535) {
		return fmt.Errorf("metrics port must be between 1-65535, got %d", m.Port)
	}
	return nil
}
