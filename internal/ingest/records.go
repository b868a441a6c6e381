// Package ingest loads training material: example logs, imported
// conversation pairs and reference documents.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/lewisedginton/sdr_chatbot/internal/storage_manager"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Record files inside the examples namespace.
const (
	ConversationsFile = "conversas.txt"
	TranscriptsFile   = "audios_txt.txt"
	ReferencesDir     = "referencias"
)

const recordSeparator = "\n\n"

// SplitRecords splits text on blank lines and drops empty records.
func SplitRecords(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, recordSeparator) {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

// Examples is the material fed to the LLM prompt.
type Examples struct {
	Conversations []string
	Transcripts   []string
	References    []string
}

// Library reads and appends blank-line separated record files.
type Library struct {
	files storage_manager.FileProvider
	log   logger.Logger
	// Serialises appends; FileProvider has no native append.
	mu sync.Mutex
}

func NewLibrary(files storage_manager.FileProvider, log logger.Logger) *Library {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Library{files: files, log: log}
}

// Records returns the records of file, or nothing when it does not exist.
func (l *Library) Records(ctx context.Context, file string) ([]string, error) {
	data, err := l.files.Read(ctx, file)
	if errors.Is(err, storage_manager.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return SplitRecords(string(data)), nil
}

// Append adds text as a new record at the end of file.
func (l *Library) Append(ctx context.Context, file, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.files.Read(ctx, file)
	if err != nil && !errors.Is(err, storage_manager.ErrNotFound) {
		return fmt.Errorf("read %s: %w", file, err)
	}
	record := text
	if len(strings.TrimSpace(string(existing))) > 0 {
		record = recordSeparator + text
	}
	if err := storage_manager.Append(ctx, l.files, file, []byte(record)); err != nil {
		return fmt.Errorf("append to %s: %w", file, err)
	}
	return nil
}

// AppendTranscript stores an audio transcript as a new record.
func (l *Library) AppendTranscript(ctx context.Context, text string) error {
	return l.Append(ctx, TranscriptsFile, text)
}

// References returns the contents of .txt and .md files under ReferencesDir,
// in path order.
func (l *Library) References(ctx context.Context) ([]string, error) {
	paths, err := l.files.List(ctx, ReferencesDir)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	sort.Strings(paths)

	var out []string
	for _, p := range paths {
		switch strings.ToLower(path.Ext(p)) {
		case ".txt", ".md":
		default:
			continue
		}
		data, err := l.files.Read(ctx, p)
		if err != nil {
			l.log.Warn("skipping unreadable reference", logger.StringField("path", p), logger.ErrorField(err))
			continue
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// Load reads every record source. Missing files are empty, not errors.
func (l *Library) Load(ctx context.Context) (Examples, error) {
	var ex Examples
	var err error
	if ex.Conversations, err = l.Records(ctx, ConversationsFile); err != nil {
		return ex, err
	}
	if ex.Transcripts, err = l.Records(ctx, TranscriptsFile); err != nil {
		return ex, err
	}
	if ex.References, err = l.References(ctx); err != nil {
		return ex, err
	}
	return ex, nil
}

// PromptExamples picks the first two conversations and the first transcript.
func (e Examples) PromptExamples() []string {
	out := make([]string, 0, 3)
	out = append(out, firstN(e.Conversations, 2)...)
	return append(out, firstN(e.Transcripts, 1)...)
}

func firstN(list []string, n int) []string {
	if len(list) < n {
		return list
	}
	return list[:n]
}
