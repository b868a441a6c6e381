// Package crm talks to the CRM's GraphQL API: it fetches unanswered lead
// messages and posts replies back.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrGraphQL wraps errors reported in a GraphQL response body.
var ErrGraphQL = errors.New("graphql error")

// Message types sent by the CRM.
const (
	TypeText  = "texto"
	TypeAudio = "audio"
	TypePDF   = "pdf"
)

// Message is an unanswered lead message.
type Message struct {
	ID          string `json:"id"`
	Type        string `json:"tipo"`
	Content     string `json:"conteudo"`
	AudioURL    string `json:"url_audio,omitempty"`
	PDFURL      string `json:"url_pdf,omitempty"`
	ContactName string `json:"nome_contato"`
	ContactID   string `json:"contato_id"`
}

const unansweredQuery = `{
  mensagensNaoRespondidas {
    id
    tipo
    conteudo
    url_audio
    url_pdf
    nome_contato
    contato_id
  }
}`

const sendMutation = `mutation($contatoId: ID!, $mensagem: String!) {
  enviarMensagem(contatoId: $contatoId, mensagem: $mensagem) {
    sucesso
  }
}`

// Client is a minimal GraphQL client bound to one endpoint.
type Client struct {
	url   string
	token string
	http  *http.Client
}

// ClientConfig for NewClient. HTTPClient defaults to one with Timeout.
type ClientConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("CRM API URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("CRM token is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{url: cfg.URL, token: cfg.Token, http: hc}, nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// FetchUnanswered returns the messages still waiting for a reply.
func (c *Client) FetchUnanswered(ctx context.Context) ([]Message, error) {
	var data struct {
		Messages []Message `json:"mensagensNaoRespondidas"`
	}
	if err := c.do(ctx, gqlRequest{Query: unansweredQuery}, &data); err != nil {
		return nil, fmt.Errorf("fetch unanswered messages: %w", err)
	}
	return data.Messages, nil
}

// SendMessage posts text to a contact. A response with sucesso=false is an error.
func (c *Client) SendMessage(ctx context.Context, contactID, text string) error {
	var data struct {
		Send *struct {
			Success bool `json:"sucesso"`
		} `json:"enviarMensagem"`
	}
	req := gqlRequest{
		Query:     sendMutation,
		Variables: map[string]any{"contatoId": contactID, "mensagem": text},
	}
	if err := c.do(ctx, req, &data); err != nil {
		return fmt.Errorf("send message to %s: %w", contactID, err)
	}
	if data.Send == nil || !data.Send.Success {
		return fmt.Errorf("send message to %s: %w: not acknowledged", contactID, ErrGraphQL)
	}
	return nil
}

func (c *Client) do(ctx context.Context, body gqlRequest, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var gr gqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return fmt.Errorf("%w: empty data", ErrGraphQL)
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
