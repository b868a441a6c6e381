package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lewisedginton/sdr_chatbot/internal/media"
	"github.com/lewisedginton/sdr_chatbot/internal/store"
)

const (
	// SummaryRunes is the length of the stored document summary.
	SummaryRunes = 500
	// PreviewRunes is the length of the preview shown to the operator.
	PreviewRunes = 500
)

// ErrNoText is returned for a document with nothing but whitespace.
var ErrNoText = errors.New("no text content")

// DocumentSaver persists processed documents.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, d store.Document) (string, error)
}

// FileResult describes a processed document.
type FileResult struct {
	Filename  string `json:"filename"`
	FileType  string `json:"file_type"`
	WordCount int    `json:"word_count"`
	Preview   string `json:"preview"`
	Hash      string `json:"hash"`
}

// DocumentProcessor reads reference files and stores them as documents.
type DocumentProcessor struct {
	docs DocumentSaver
	pdf  *media.PDFExtractor
}

// NewDocumentProcessor creates a processor. pdf may be nil, in which case
// PDFs are rejected as unsupported.
func NewDocumentProcessor(docs DocumentSaver, pdf *media.PDFExtractor) *DocumentProcessor {
	return &DocumentProcessor{docs: docs, pdf: pdf}
}

// ProcessFile extracts the text of path and upserts it as a document.
func (p *DocumentProcessor) ProcessFile(ctx context.Context, path string) (FileResult, error) {
	name := filepath.Base(path)
	if err := p.supports(name); err != nil {
		return FileResult{Filename: name, FileType: fileType(name)}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Filename: name, FileType: fileType(name)}, fmt.Errorf("read %s: %w", name, err)
	}
	return p.Process(ctx, name, data)
}

// Process extracts the text of a file already in memory and upserts it as a
// document. The type comes from the extension of name.
func (p *DocumentProcessor) Process(ctx context.Context, name string, data []byte) (FileResult, error) {
	name = filepath.Base(name)
	ext := fileType(name)
	res := FileResult{Filename: name, FileType: ext}
	if err := p.supports(name); err != nil {
		return res, err
	}

	var text string
	if ext == "pdf" {
		var err error
		if text, err = p.pdf.Extract(ctx, data); err != nil {
			return res, fmt.Errorf("extract %s: %w", name, err)
		}
	} else {
		if !utf8.Valid(data) {
			data = []byte(strings.ToValidUTF8(string(data), ""))
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return res, fmt.Errorf("%s: %w", name, ErrNoText)
	}

	hash, err := p.docs.SaveDocument(ctx, store.Document{
		Filename: name,
		FileType: ext,
		Content:  text,
		Summary:  truncate(text, SummaryRunes),
		Keywords: strings.Join(store.IndexKeywords(text), ","),
	})
	if err != nil {
		return res, err
	}

	res.Hash = hash
	res.WordCount = len(strings.Fields(text))
	res.Preview = truncate(text, PreviewRunes)
	if utf8.RuneCountInString(text) > PreviewRunes {
		res.Preview += "..."
	}
	return res, nil
}

// supports returns media.ErrUnsupported for a file the processor cannot read.
func (p *DocumentProcessor) supports(name string) error {
	switch ext := fileType(name); ext {
	case "txt", "md", "csv":
		return nil
	case "pdf":
		if p.pdf == nil {
			return fmt.Errorf("%s: %w: pdf", name, media.ErrUnsupported)
		}
		return nil
	default:
		return fmt.Errorf("%s: %w: .%s", name, media.ErrUnsupported, ext)
	}
}

func fileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
