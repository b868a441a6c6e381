package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UploadKind tells what an uploaded file became.
type UploadKind string

const (
	UploadTraining UploadKind = "training"
	UploadDocument UploadKind = "document"
)

// UploadResult is the outcome of Uploader.UploadFile. Exactly one of
// Training and Document is set.
type UploadResult struct {
	Kind     UploadKind    `json:"kind"`
	Training *ImportResult `json:"training,omitempty"`
	Document *FileResult   `json:"document,omitempty"`
}

// Uploader routes an operator's file: text files holding cliente/gabriel
// pairs are imported as training turns, everything else is stored as a
// reference document.
type Uploader struct {
	importer *Importer
	docs     *DocumentProcessor
}

func NewUploader(importer *Importer, docs *DocumentProcessor) *Uploader {
	return &Uploader{importer: importer, docs: docs}
}

// UploadFile reads path and routes it like Upload.
func (u *Uploader) UploadFile(ctx context.Context, path string) (UploadResult, error) {
	name := filepath.Base(path)
	if !isTraining(name) {
		if err := u.docs.supports(name); err != nil {
			return UploadResult{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("read %s: %w", name, err)
	}
	return u.Upload(ctx, name, data)
}

// Upload routes a file received in memory, such as an API upload.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte) (UploadResult, error) {
	name = filepath.Base(name)
	if isTraining(name) {
		res, err := u.importer.Import(ctx, name, data)
		if err == nil {
			return UploadResult{Kind: UploadTraining, Training: &res}, nil
		}
		if !errors.Is(err, ErrNoPairs) {
			return UploadResult{}, err
		}
	}

	doc, err := u.docs.Process(ctx, name, data)
	if err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Kind: UploadDocument, Document: &doc}, nil
}

// isTraining reports whether name may hold cliente/gabriel pairs.
func isTraining(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".txt" || ext == ".md"
}
