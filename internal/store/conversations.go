package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// DefaultSimilarLimit is the number of similar turns returned when the caller passes 0.
const DefaultSimilarLimit = 5

// Turn is one persisted (message, response) pair. Turns are append-only.
type Turn struct {
	ID          int64
	UserMessage string
	Response    string
	Context     map[string]any
	Intent      string
	CreatedAt   time.Time
	Hash        string
}

// SaveResult reports what SaveTurn did.
type SaveResult struct {
	Hash string
	// Inserted is false when an identical turn already existed.
	Inserted bool
}

// SaveTurn stores the turn unless one with the same (message, response) hash
// already exists. A duplicate is not an error.
func (s *Store) SaveTurn(ctx context.Context, t Turn) (SaveResult, error) {
	hash := TurnHash(t.UserMessage, t.Response)
	res := SaveResult{Hash: hash}

	var ctxJSON sql.NullString
	if len(t.Context) > 0 {
		raw, err := json.Marshal(t.Context)
		if err != nil {
			return res, fmt.Errorf("encode turn context: %w", err)
		}
		ctxJSON = sql.NullString{String: string(raw), Valid: true}
	}

	created := t.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	r, err := s.exec(ctx, `
		INSERT INTO conversations (user_message, response, context, intent, created_at, message_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_hash) DO NOTHING`,
		t.UserMessage, t.Response, ctxJSON, t.Intent, created.UTC(), hash)
	if err != nil {
		s.log.Error("failed to save turn", logger.ErrorField(err), logger.StringField("hash", hash))
		return res, fmt.Errorf("save turn: %w", err)
	}

	n, err := r.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("save turn: rows affected: %w", err)
	}
	res.Inserted = n > 0
	return res, nil
}

const turnColumns = `id, user_message, response, context, intent, created_at, message_hash`

// GetTurnByHash returns ErrNotFound when no turn carries hash.
func (s *Store) GetTurnByHash(ctx context.Context, hash string) (Turn, error) {
	row := s.queryRow(ctx, `SELECT `+turnColumns+` FROM conversations WHERE message_hash = ?`, hash)
	t, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Turn{}, ErrNotFound
	}
	if err != nil {
		return Turn{}, fmt.Errorf("get turn %s: %w", hash, err)
	}
	return t, nil
}

// ListRecent returns up to n turns, newest first.
func (s *Store) ListRecent(ctx context.Context, n int) ([]Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.query(ctx, `SELECT `+turnColumns+` FROM conversations ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	return collectTurns(rows)
}

// FindSimilar returns the newest turns whose user message contains any
// keyword of message as a case-sensitive substring. No usable keywords means
// an empty result without touching the database.
func (s *Store) FindSimilar(ctx context.Context, message string, limit int) ([]Turn, error) {
	keywords := ExtractKeywords(message)
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	preds := make([]string, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	for i, kw := range keywords {
		preds[i] = s.dialect.contains("user_message")
		args = append(args, kw)
	}
	args = append(args, limit)

	q := `SELECT ` + turnColumns + ` FROM conversations WHERE ` + strings.Join(preds, " OR ") +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find similar turns: %w", err)
	}
	return collectTurns(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(sc scanner) (Turn, error) {
	var (
		t       Turn
		ctxJSON sql.NullString
	)
	if err := sc.Scan(&t.ID, &t.UserMessage, &t.Response, &ctxJSON, &t.Intent, &t.CreatedAt, &t.Hash); err != nil {
		return Turn{}, err
	}
	if ctxJSON.Valid && ctxJSON.String != "" {
		if err := json.Unmarshal([]byte(ctxJSON.String), &t.Context); err != nil {
			return Turn{}, fmt.Errorf("decode turn context: %w", err)
		}
	}
	return t, nil
}

func collectTurns(rows *sql.Rows) ([]Turn, error) {
	defer rows.Close()
	var out []Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
