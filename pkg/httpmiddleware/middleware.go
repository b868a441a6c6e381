// Package httpmiddleware assembles the middleware stack shared by the HTTP
// API: correlation-aware request logging, panic recovery, security headers,
// CORS, timeouts, metrics and a /ping heartbeat.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Config selects the middleware applied by Apply.
type Config struct {
	// Logger enables request logging when set.
	Logger logger.Logger
	// Metrics wraps every request, typically metrics.Metrics.HTTPMiddleware().
	Metrics  func(http.Handler) http.Handler
	CORS     *CORSConfig
	Security *secure.Options
	Timeout  time.Duration

	EnableSecurity  bool
	EnableHeartbeat bool
}

// DefaultConfig returns the production stack without logging or metrics.
func DefaultConfig() Config {
	c := DefaultCORSConfig()
	return Config{
		CORS:            &c,
		Timeout:         60 * time.Second,
		EnableSecurity:  true,
		EnableHeartbeat: true,
	}
}

// Apply installs the stack on router, outermost first: heartbeat, real IP,
// logging, metrics, recovery, security, CORS, timeout.
func Apply(router chi.Router, cfg Config) {
	if cfg.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
	router.Use(middleware.RealIP)
	if cfg.Logger != nil {
		router.Use(cfg.Logger.HTTPMiddleware)
	}
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics)
	}
	router.Use(Recovery(cfg.Logger))
	if cfg.EnableSecurity {
		router.Use(Security(cfg.Security))
	}
	if cfg.CORS != nil {
		router.Use(CORS(*cfg.CORS))
	}
	if cfg.Timeout > 0 {
		router.Use(middleware.Timeout(cfg.Timeout))
	}
}
