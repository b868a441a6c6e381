// Package checkers holds reusable health checks.
package checkers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker reports an endpoint unhealthy when it cannot be reached or
// answers 5xx. Any other status means the endpoint is up.
type HTTPChecker struct {
	url    string
	name   string
	client *http.Client
}

// NewHTTPChecker checks url. An empty name defaults to the URL; a nil client
// gets a 10s timeout.
func NewHTTPChecker(url, name string, client *http.Client) *HTTPChecker {
	if name == "" {
		name = url
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPChecker{url: url, name: name, client: client}
}

func (h *HTTPChecker) Name() string { return h.name }

func (h *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
	}
	return nil
}

// Pinger is anything that can verify its own connection, such as a
// database handle.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker wraps a Pinger.
type PingChecker struct {
	target Pinger
	name   string
}

func NewPingChecker(target Pinger, name string) *PingChecker {
	if name == "" {
		name = "database"
	}
	return &PingChecker{target: target, name: name}
}

func (p *PingChecker) Name() string { return p.name }

func (p *PingChecker) Check(ctx context.Context) error {
	if err := p.target.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}
