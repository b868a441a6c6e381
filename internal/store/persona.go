package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// UpsertPersona writes each key with its JSON-encoded value, replacing any
// previous value for the same key. Keys are written in sorted order.
func (s *Store) UpsertPersona(ctx context.Context, entries map[string]json.RawMessage) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	now := s.now()
	for _, k := range keys {
		_, err := s.exec(ctx, `
			INSERT INTO persona_config (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, string(entries[k]), now)
		if err != nil {
			s.log.Error("failed to upsert persona key", logger.ErrorField(err), logger.StringField("key", k))
			return fmt.Errorf("upsert persona %q: %w", k, err)
		}
	}
	return nil
}

// GetPersona returns every stored persona key. An empty map means nothing
// has been saved yet.
func (s *Store) GetPersona(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.query(ctx, `SELECT key, value FROM persona_config`)
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan persona row: %w", err)
		}
		if !json.Valid([]byte(v)) {
			// hand-edited rows hold bare strings
			quoted, _ := json.Marshal(v)
			v = string(quoted)
		}
		out[k] = json.RawMessage(v)
	}
	return out, rows.Err()
}
