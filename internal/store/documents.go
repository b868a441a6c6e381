package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Document is processed reference material. Content is unique by hash.
type Document struct {
	ID          int64
	Filename    string
	FileType    string
	Content     string
	Summary     string
	Keywords    string
	Hash        string
	ProcessedAt time.Time
}

// SaveDocument inserts the document or replaces the row holding the same
// content hash. The stored hash is returned.
func (s *Store) SaveDocument(ctx context.Context, d Document) (string, error) {
	hash := ContentHash(d.Content)
	_, err := s.exec(ctx, `
		INSERT INTO documents (filename, file_type, content, summary, keywords, processed_at, file_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_hash) DO UPDATE SET
			filename = excluded.filename,
			file_type = excluded.file_type,
			summary = excluded.summary,
			keywords = excluded.keywords,
			processed_at = excluded.processed_at`,
		d.Filename, d.FileType, d.Content, d.Summary, d.Keywords, s.now(), hash)
	if err != nil {
		return "", fmt.Errorf("save document %s: %w", d.Filename, err)
	}
	return hash, nil
}

const documentColumns = `id, filename, file_type, content, summary, keywords, file_hash, processed_at`

// ListDocuments returns documents, most recently processed first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY processed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return collectDocuments(rows)
}

// FindDocuments returns up to limit documents whose keyword list mentions
// any keyword of text, compared lower-cased.
func (s *Store) FindDocuments(ctx context.Context, text string, limit int) ([]Document, error) {
	keywords := IndexKeywords(text)
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}
	preds := make([]string, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	for i, kw := range keywords {
		preds[i] = s.dialect.contains("keywords")
		args = append(args, kw)
	}
	args = append(args, limit)

	rows, err := s.query(ctx, `SELECT `+documentColumns+` FROM documents WHERE `+
		strings.Join(preds, " OR ")+` ORDER BY processed_at DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.FileType, &d.Content, &d.Summary, &d.Keywords, &d.Hash, &d.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
