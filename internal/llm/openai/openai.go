// Package openai implements llm.Client and audio transcription on the
// OpenAI API.
package openai

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lewisedginton/sdr_chatbot/internal/llm"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gpt-4"

// Model is an llm.Client backed by chat completions.
type Model struct {
	client    openai.Client
	modelName string
}

// New creates a chat model. Extra options are appended after the API key,
// so tests can point the client at a local server.
func New(apiKey, modelName string, opts ...option.RequestOption) (*Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Model{client: client, modelName: modelName}, nil
}

// Name returns the model name.
func (o *Model) Name() string {
	return o.modelName
}

// Complete sends one non-streaming chat completion request.
func (o *Model) Complete(ctx context.Context, req llm.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       o.modelName,
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", llm.ErrEmptyCompletion
	}
	return completion.Choices[0].Message.Content, nil
}

// Transcriber turns audio into text with Whisper.
type Transcriber struct {
	client openai.Client
}

// NewTranscriber creates a whisper-1 transcriber.
func NewTranscriber(apiKey string, opts ...option.RequestOption) (*Transcriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return &Transcriber{
		client: openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
	}, nil
}

// Transcribe uploads audio under filename and returns the recognised text.
func (t *Transcriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	res, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, contentType(filename)),
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription error: %w", err)
	}
	return res.Text, nil
}

func contentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}
