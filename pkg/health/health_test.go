package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCheck struct {
	name  string
	err   error
	sleep time.Duration
}

func (m *mockCheck) Name() string { return m.name }

func (m *mockCheck) Check(ctx context.Context) error {
	if m.sleep > 0 {
		select {
		case <-time.After(m.sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, 5*time.Second, c.timeout)
	assert.Equal(t, 3, c.threshold)

	c = New(WithTimeout(time.Second), WithFailureThreshold(5))
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, 5, c.threshold)

	c = New(WithFailureThreshold(0), WithTimeout(0))
	assert.Equal(t, 3, c.threshold)
	assert.Equal(t, 5*time.Second, c.timeout)
}

func TestNoChecksIsHealthy(t *testing.T) {
	status, err := New().Readiness(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Checks)
}

func TestMixedResultsSortedByName(t *testing.T) {
	c := New(WithFailureThreshold(1))
	c.AddLivenessCheck(&mockCheck{name: "zeta"})
	c.AddLivenessCheck(&mockCheck{name: "alpha", err: errors.New("down")})

	status, err := c.Liveness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha: down")
	assert.False(t, status.Healthy)
	require.Len(t, status.Checks, 2)
	assert.Equal(t, "alpha", status.Checks[0].Name)
	assert.False(t, status.Checks[0].Healthy)
	assert.Equal(t, "down", status.Checks[0].Error)
	assert.True(t, status.Checks[1].Healthy)
}

func TestFailureThreshold(t *testing.T) {
	flaky := &mockCheck{name: "database", err: errors.New("timeout")}
	c := New(WithFailureThreshold(3))
	c.AddReadinessCheck(flaky)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		status, err := c.Readiness(ctx)
		require.NoError(t, err, "failure %d is below threshold", i+1)
		assert.True(t, status.Healthy)
	}
	status, err := c.Readiness(ctx)
	assert.Error(t, err)
	assert.False(t, status.Healthy)

	flaky.err = nil
	status, err = c.Readiness(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, 0, c.failures["database"])
}

func TestCheckTimeout(t *testing.T) {
	c := New(WithTimeout(20*time.Millisecond), WithFailureThreshold(1))
	c.AddReadinessCheck(&mockCheck{name: "slow", sleep: time.Second})

	start := time.Now()
	status, err := c.Readiness(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Error(t, err)
	assert.Contains(t, status.Checks[0].Error, context.DeadlineExceeded.Error())
}

func TestCheckFunc(t *testing.T) {
	boom := errors.New("boom")
	f := NewCheckFunc("fn", func(context.Context) error { return boom })
	assert.Equal(t, "fn", f.Name())
	assert.ErrorIs(t, f.Check(context.Background()), boom)
}

func TestHandlers(t *testing.T) {
	c := New(WithFailureThreshold(1))
	c.AddLivenessCheck(&mockCheck{name: "process"})
	c.AddReadinessCheck(&mockCheck{name: "database", err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var live Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&live))
	assert.Equal(t, "healthy", live.Status)
	assert.Equal(t, "ok", live.Checks["process"].Status)

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var ready Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ready))
	assert.Equal(t, "unhealthy", ready.Status)
	assert.NotEmpty(t, ready.Message)
	assert.Equal(t, CheckStatus{Status: "error", Error: "connection refused", Latency: ready.Checks["database"].Latency}, ready.Checks["database"])
}
