package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IntentCount is one row of the intent histogram.
type IntentCount struct {
	Intent string `json:"intent"`
	Count  int    `json:"count"`
}

// Stats summarises what the store holds.
type Stats struct {
	TotalConversations int           `json:"total_conversations"`
	LastConversation   *time.Time    `json:"last_conversation,omitempty"`
	TopIntents         []IntentCount `json:"top_intents"`
	Documents          int           `json:"documents"`
	MemoryEntries      int           `json:"memory_entries"`
	Embeddings         int           `json:"embeddings"`
}

// Stats counts turns, documents and memory entries and ranks the five most
// frequent non-empty intents.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	counts := []struct {
		table string
		dest  *int
	}{
		{"conversations", &st.TotalConversations},
		{"documents", &st.Documents},
		{"memory_context", &st.MemoryEntries},
		{"embeddings", &st.Embeddings},
	}
	for _, c := range counts {
		if err := s.queryRow(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	var last time.Time
	err := s.queryRow(ctx, `SELECT created_at FROM conversations ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Stats{}, fmt.Errorf("last conversation: %w", err)
	default:
		st.LastConversation = &last
	}

	rows, err := s.query(ctx, `
		SELECT intent, COUNT(*) AS n FROM conversations
		WHERE intent <> ''
		GROUP BY intent
		ORDER BY n DESC, intent ASC
		LIMIT 5`)
	if err != nil {
		return Stats{}, fmt.Errorf("top intents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ic IntentCount
		if err := rows.Scan(&ic.Intent, &ic.Count); err != nil {
			return Stats{}, fmt.Errorf("scan intent count: %w", err)
		}
		st.TopIntents = append(st.TopIntents, ic)
	}
	return st, rows.Err()
}
