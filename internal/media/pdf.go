package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultPDFToText is the extractor binary looked up on PATH.
const DefaultPDFToText = "pdftotext"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return out, err
}

// PDFExtractor pulls plain text out of PDFs with pdftotext.
type PDFExtractor struct {
	bin    string
	runner CommandRunner
}

// NewPDFExtractor uses bin, or DefaultPDFToText when empty.
func NewPDFExtractor(bin string) *PDFExtractor {
	return NewPDFExtractorWithRunner(bin, execRunner{})
}

func NewPDFExtractorWithRunner(bin string, runner CommandRunner) *PDFExtractor {
	if bin == "" {
		bin = DefaultPDFToText
	}
	return &PDFExtractor{bin: bin, runner: runner}
}

// ExtractFile returns the text of the PDF at path.
func (p *PDFExtractor) ExtractFile(ctx context.Context, path string) (string, error) {
	out, err := p.runner.Run(ctx, p.bin, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", p.bin, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Extract writes data to a temporary file and extracts it.
func (p *PDFExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "sdrbot-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp pdf: %w", err)
	}
	return p.ExtractFile(ctx, f.Name())
}
