package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MemoryEntry is a keyed piece of long-lived context. Importance is supplied
// by the caller and never computed here.
type MemoryEntry struct {
	Key          string
	Value        string
	Importance   float64
	LastAccessed time.Time
	CreatedAt    time.Time
}

// UpsertMemory creates or replaces the entry for key.
func (s *Store) UpsertMemory(ctx context.Context, key, value string, importance float64) error {
	now := s.now()
	_, err := s.exec(ctx, `
		INSERT INTO memory_context (context_key, context_value, importance_score, last_accessed, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (context_key) DO UPDATE SET
			context_value = excluded.context_value,
			importance_score = excluded.importance_score,
			last_accessed = excluded.last_accessed`,
		key, value, importance, now, now)
	if err != nil {
		return fmt.Errorf("upsert memory %q: %w", key, err)
	}
	return nil
}

// GetMemory returns the entry for key and marks it accessed.
func (s *Store) GetMemory(ctx context.Context, key string) (MemoryEntry, error) {
	var e MemoryEntry
	err := s.queryRow(ctx, `
		SELECT context_key, context_value, importance_score, last_accessed, created_at
		FROM memory_context WHERE context_key = ?`, key).
		Scan(&e.Key, &e.Value, &e.Importance, &e.LastAccessed, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return MemoryEntry{}, ErrNotFound
	}
	if err != nil {
		return MemoryEntry{}, fmt.Errorf("get memory %q: %w", key, err)
	}

	now := s.now()
	if _, err := s.exec(ctx, `UPDATE memory_context SET last_accessed = ? WHERE context_key = ?`, now, key); err != nil {
		return MemoryEntry{}, fmt.Errorf("touch memory %q: %w", key, err)
	}
	e.LastAccessed = now
	return e, nil
}

// ListMemory returns the n most important entries.
func (s *Store) ListMemory(ctx context.Context, n int) ([]MemoryEntry, error) {
	rows, err := s.query(ctx, `
		SELECT context_key, context_value, importance_score, last_accessed, created_at
		FROM memory_context ORDER BY importance_score DESC, last_accessed DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list memory: %w", err)
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.Importance, &e.LastAccessed, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
