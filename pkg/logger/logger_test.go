package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: InfoLevel, Service: "sdrbot", Output: &buf})

	log.Info("turn processed", StringField("intent", "preco"), IntField("examples", 2))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "turn processed", entries[0]["msg"])
	assert.Equal(t, "sdrbot", entries[0]["service"])
	assert.Equal(t, "preco", entries[0]["intent"])
	assert.Equal(t, "2", entries[0]["examples"])
	assert.Equal(t, "info", entries[0]["level"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: WarnLevel, Output: &buf})

	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["msg"])
	assert.Equal(t, "error", entries[1]["msg"])
}

func TestWithFieldsIsImmutable(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(Config{Level: InfoLevel, Output: &buf})
	child := base.WithFields(SessionIDField("s-1"))

	base.Info("from base")
	child.Info("from child")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0], "session_id")
	assert.Equal(t, "s-1", entries[1]["session_id"])
}

func TestFieldHelpers(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		field LogField
		want  LogField
	}{
		{"string", StringField("k", "v"), LogField{"k", "v"}},
		{"int", IntField("k", 42), LogField{"k", "42"}},
		{"int64", Int64Field("k", 7), LogField{"k", "7"}},
		{"bool", BoolField("k", true), LogField{"k", "true"}},
		{"duration", DurationField("k", 1500*time.Millisecond), LogField{"k", "1.5s"}},
		{"time", TimeField("k", ts), LogField{"k", "2024-05-01T10:00:00Z"}},
		{"error", ErrorField(errors.New("boom")), LogField{"error", "boom"}},
		{"nil error", ErrorField(nil), LogField{"error", "<nil>"}},
		{"generic float", Field("k", 0.75), LogField{"k", "0.75"}},
		{"generic slice", Field("k", []string{"a", "b"}), LogField{"k", "[a b]"}},
		{"intent", IntentField("saudacao"), LogField{"intent", "saudacao"}},
		{"correlation", CorrelationIDField("abc"), LogField{CorrelationIDFieldKey, "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.field)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestEnsureCorrelationID(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())
	require.NotEmpty(t, id)
	assert.Equal(t, id, GetCorrelationIDFromContext(ctx))

	again, sameID := EnsureCorrelationID(ctx)
	assert.Equal(t, id, sameID)
	assert.Equal(t, ctx, again)
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: InfoLevel, Output: &buf})

	var seen string
	handler := log.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	t.Run("keeps valid correlation id", func(t *testing.T) {
		buf.Reset()
		id := uuid.New().String()
		req := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
		req.Header.Set(CorrelationIDHeader, id)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, id, seen)
		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "201", entries[0]["http_status"])
		assert.Equal(t, "5", entries[0]["response_bytes"])
		assert.Equal(t, "/v1/messages", entries[0]["http_path"])
		assert.Equal(t, id, entries[0][CorrelationIDFieldKey])
	})

	t.Run("replaces malformed correlation id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, "not-a-uuid")

		handler.ServeHTTP(httptest.NewRecorder(), req)

		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.NotEqual(t, "not-a-uuid", seen)
	})
}
