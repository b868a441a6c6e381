package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/sdr_chatbot/internal/llm"
)

func TestNewClaudeModel(t *testing.T) {
	_, err := NewClaudeModel("", "claude-3-5-sonnet-20241022")
	assert.Error(t, err)

	m, err := NewClaudeModel("test-key", "claude-3-5-sonnet-20241022")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-sonnet-20241022", m.Name())

	m, err = NewClaudeModel("test-key", "")
	require.NoError(t, err)
	assert.NotEmpty(t, m.Name())
}

func TestComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "Perfeito! Vamos agendar."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	m, err := NewClaudeModel("test-key", "claude-3-5-sonnet-20241022",
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	text, err := m.Complete(context.Background(), llm.Request{
		System:      "Você é Gabriel.",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "quero agendar"}},
		Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Perfeito! Vamos agendar.", text)

	assert.EqualValues(t, defaultMaxTokens, got["max_tokens"])
	system, ok := got["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "Você é Gabriel.", system[0].(map[string]any)["text"])
}

func TestCompleteEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "msg_2", "type": "message", "role": "assistant",
			"model": "m", "content": [], "stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 0}}`)
	}))
	defer srv.Close()

	m, err := NewClaudeModel("test-key", "m", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "oi"}}})
	assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
}
