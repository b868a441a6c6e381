// Package media turns audio and PDF attachments into text.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Attachment kinds. Anything else is treated as plain text.
const (
	KindText  = "texto"
	KindAudio = "audio"
	KindPDF   = "pdf"
)

// ErrUnsupported is returned for a kind the resolver is not configured for.
var ErrUnsupported = errors.New("unsupported media")

// DefaultMaxDownloadBytes caps attachment downloads.
const DefaultMaxDownloadBytes = 25 << 20

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// TranscriptSink receives every successful transcription.
type TranscriptSink interface {
	AppendTranscript(ctx context.Context, text string) error
}

// Config for NewResolver. Transcriber and PDF are optional; without them the
// matching kinds fail with ErrUnsupported.
type Config struct {
	Transcriber      Transcriber
	PDF              *PDFExtractor
	Sink             TranscriptSink
	HTTPClient       *http.Client
	MaxDownloadBytes int64
	Logger           logger.Logger
}

// Resolver fetches attachments and returns their text.
type Resolver struct {
	transcriber Transcriber
	pdf         *PDFExtractor
	sink        TranscriptSink
	http        *http.Client
	maxBytes    int64
	log         logger.Logger
}

func NewResolver(cfg Config) *Resolver {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	return &Resolver{
		transcriber: cfg.Transcriber,
		pdf:         cfg.PDF,
		sink:        cfg.Sink,
		http:        cfg.HTTPClient,
		maxBytes:    cfg.MaxDownloadBytes,
		log:         cfg.Logger,
	}
}

// Resolve returns content for text messages, the transcription for audio and
// the extracted text for PDFs.
func (r *Resolver) Resolve(ctx context.Context, kind, content, src string) (string, error) {
	switch kind {
	case KindAudio:
		return r.Transcribe(ctx, src)
	case KindPDF:
		return r.ReadPDF(ctx, src)
	default:
		return content, nil
	}
}

// Transcribe downloads the audio at src and transcribes it. The transcript
// is also handed to the sink; a sink failure is only logged.
func (r *Resolver) Transcribe(ctx context.Context, src string) (string, error) {
	if r.transcriber == nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, KindAudio)
	}
	data, err := r.download(ctx, src)
	if err != nil {
		return "", err
	}

	text, err := r.transcriber.Transcribe(ctx, fileName(src, "audio.mp3"), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", src, err)
	}
	text = strings.TrimSpace(text)
	r.log.Info("audio transcribed", logger.IntField("chars", len(text)))

	if r.sink != nil && text != "" {
		if err := r.sink.AppendTranscript(ctx, text); err != nil {
			r.log.Warn("failed to store transcript", logger.ErrorField(err))
		}
	}
	return text, nil
}

// ReadPDF downloads the PDF at src and extracts its text.
func (r *Resolver) ReadPDF(ctx context.Context, src string) (string, error) {
	if r.pdf == nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, KindPDF)
	}
	data, err := r.download(ctx, src)
	if err != nil {
		return "", err
	}
	text, err := r.pdf.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", src, err)
	}
	return text, nil
}

func (r *Resolver) download(ctx context.Context, src string) ([]byte, error) {
	if src == "" {
		return nil, fmt.Errorf("download: empty URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", src, err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", src, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", src, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("download %s: larger than %d bytes", src, r.maxBytes)
	}
	return data, nil
}

func fileName(src, fallback string) string {
	u, err := url.Parse(src)
	if err != nil {
		return fallback
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || path.Ext(name) == "" {
		return fallback
	}
	return name
}
