package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/sdr_chatbot/internal/llm"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		apiKey    string
		modelName string
		wantName  string
		wantErr   bool
	}{
		{name: "valid inputs", apiKey: "test-api-key", modelName: "gpt-4o", wantName: "gpt-4o"},
		{name: "empty api key", apiKey: "", modelName: "gpt-4o", wantErr: true},
		{name: "default model", apiKey: "test-api-key", wantName: DefaultModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.apiKey, tt.modelName)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, m.Name())
		})
	}
}

func TestComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "Olá! Como posso ajudar?"}
			}]
		}`)
	}))
	defer srv.Close()

	m, err := New("test-key", "gpt-4", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	text, err := m.Complete(context.Background(), llm.Request{
		System: "Você é Gabriel.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "oi"},
			{Role: llm.RoleAssistant, Content: "olá"},
			{Role: llm.RoleUser, Content: "qual o preço?"},
		},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	require.NoError(t, err)
	assert.Equal(t, "Olá! Como posso ajudar?", text)

	assert.Equal(t, "gpt-4", got["model"])
	assert.InDelta(t, 0.7, got["temperature"], 0.0001)
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	m, err := New("bad", "gpt-4", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	_, err = m.Complete(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "oi"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai API error")
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "nota.ogg", hdr.Filename)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "fake audio", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text": "quero agendar uma reunião"}`)
	}))
	defer srv.Close()

	tr, err := NewTranscriber("test-key", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), "nota.ogg", strings.NewReader("fake audio"))
	require.NoError(t, err)
	assert.Equal(t, "quero agendar uma reunião", text)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/wav", contentType("a.WAV"))
	assert.Equal(t, "audio/ogg", contentType("a.oga"))
	assert.Equal(t, "audio/mpeg", contentType("a.mp3"))
	assert.Equal(t, "audio/mpeg", contentType("noext"))
}
