// Package health runs liveness and readiness probes. A readiness check only
// reports unhealthy after a configurable number of consecutive failures so a
// single slow dependency does not flap the probe.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Check is a single named probe. Check returns nil when healthy.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string                    { return c.name }
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of one check run.
type CheckResult struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// Status aggregates a probe run. Checks are sorted by name.
type Status struct {
	Healthy bool
	Checks  []CheckResult
}

// Checker holds the registered checks.
type Checker struct {
	mu        sync.Mutex
	liveness  []Check
	readiness []Check
	failures  map[string]int

	timeout   time.Duration
	threshold int
	log       logger.Logger
}

type Option func(*Checker)

// WithTimeout bounds each check. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFailureThreshold sets how many consecutive failures mark a check
// unhealthy. Default 3.
func WithFailureThreshold(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.threshold = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.log = l
		}
	}
}

func New(opts ...Option) *Checker {
	c := &Checker{
		failures:  make(map[string]int),
		timeout:   5 * time.Second,
		threshold: 3,
		log:       logger.NewNopLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Checker) AddLivenessCheck(chk Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveness = append(c.liveness, chk)
}

func (c *Checker) AddReadinessCheck(chk Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readiness = append(c.readiness, chk)
}

// Liveness runs the liveness checks.
func (c *Checker) Liveness(ctx context.Context) (Status, error) {
	c.mu.Lock()
	checks := append([]Check(nil), c.liveness...)
	c.mu.Unlock()
	return c.run(ctx, checks)
}

// Readiness runs the readiness checks.
func (c *Checker) Readiness(ctx context.Context) (Status, error) {
	c.mu.Lock()
	checks := append([]Check(nil), c.readiness...)
	c.mu.Unlock()
	return c.run(ctx, checks)
}

// run executes checks concurrently. The error lists every unhealthy check.
func (c *Checker) run(ctx context.Context, checks []Check) (Status, error) {
	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, chk := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.runOne(ctx, chk)
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	status := Status{Healthy: true, Checks: results}
	var result error
	for _, r := range results {
		if !r.Healthy {
			status.Healthy = false
			result = multierror.Append(result, fmt.Errorf("%s: %s", r.Name, r.Error))
		}
	}
	return status, result
}

func (c *Checker) runOne(parent context.Context, chk Check) CheckResult {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := chk.Check(ctx)
	res := CheckResult{Name: chk.Name(), Healthy: true, Latency: time.Since(start)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.failures[res.Name] = 0
		return res
	}

	c.failures[res.Name]++
	n := c.failures[res.Name]
	fields := []logger.LogField{
		logger.StringField("check", res.Name),
		logger.ErrorField(err),
		logger.IntField("failures", n),
	}
	if n < c.threshold {
		c.log.Debug("Health check failed below threshold", fields...)
		return res
	}
	c.log.Warn("Health check failed", fields...)
	res.Healthy = false
	res.Error = err.Error()
	return res
}
