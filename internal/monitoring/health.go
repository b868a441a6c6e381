// Package monitoring wires the bot's dependencies into health probes and
// Prometheus collectors.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/sdr_chatbot/pkg/health"
	"github.com/lewisedginton/sdr_chatbot/pkg/health/checkers"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Version is reported by /health; set with -ldflags at build time.
var Version = "dev"

// Config lists the dependencies to probe. Every field but Logger is optional.
type Config struct {
	Logger logger.Logger
	// Store is pinged on readiness.
	Store checkers.Pinger
	// CRMURL is probed over HTTP when the poller is enabled.
	CRMURL           string
	Timeout          time.Duration
	FailureThreshold int
}

// HealthMonitor serves /health, /health/live and /health/ready.
type HealthMonitor struct {
	checker *health.Checker
	log     logger.Logger
	started time.Time
}

func NewHealthMonitor(cfg Config) *HealthMonitor {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}

	c := health.New(
		health.WithLogger(cfg.Logger),
		health.WithTimeout(cfg.Timeout),
		health.WithFailureThreshold(cfg.FailureThreshold),
	)
	c.AddLivenessCheck(health.NewCheckFunc("process", func(context.Context) error { return nil }))
	if cfg.Store != nil {
		c.AddReadinessCheck(checkers.NewPingChecker(cfg.Store, "database"))
	}
	if cfg.CRMURL != "" {
		c.AddReadinessCheck(checkers.NewHTTPChecker(cfg.CRMURL, "crm", nil))
	}

	return &HealthMonitor{checker: c, log: cfg.Logger, started: time.Now()}
}

// Checker exposes the underlying checker so callers can add checks.
func (hm *HealthMonitor) Checker() *health.Checker { return hm.checker }

// HealthHandler combines liveness and readiness into one report.
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live, liveErr := hm.checker.Liveness(r.Context())
		ready, readyErr := hm.checker.Readiness(r.Context())

		resp := map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.started).Round(time.Second).String(),
			"version":   Version,
			"liveness":  section(live, liveErr),
			"readiness": section(ready, readyErr),
		}
		code := http.StatusOK
		if liveErr != nil || readyErr != nil {
			resp["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
			hm.log.Warn("Health check degraded")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func section(s health.Status, err error) map[string]any {
	out := map[string]any{"healthy": s.Healthy, "checks": s.Checks}
	if err != nil {
		out["error"] = err.Error()
	}
	return out
}

// Register mounts the probe endpoints on r.
func (hm *HealthMonitor) Register(r chi.Router) {
	r.Get("/health", hm.HealthHandler())
	r.Get("/health/live", hm.checker.LivenessHandler())
	r.Get("/health/ready", hm.checker.ReadinessHandler())
}
