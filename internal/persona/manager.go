package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Repository persists persona rows.
type Repository interface {
	UpsertPersona(ctx context.Context, entries map[string]json.RawMessage) error
	GetPersona(ctx context.Context) (map[string]json.RawMessage, error)
}

// Manager owns the live persona. Reads are cheap copies; updates go to the
// repository first and are applied in memory only once stored.
type Manager struct {
	repo Repository
	log  logger.Logger

	mu      sync.RWMutex
	current Persona
}

func NewManager(repo Repository, base Persona, log logger.Logger) *Manager {
	return &Manager{repo: repo, log: log, current: base.Clone()}
}

// Load overlays stored rows on the base persona. An empty store is seeded
// with the base persona.
func (m *Manager) Load(ctx context.Context) (Persona, error) {
	rows, err := m.repo.GetPersona(ctx)
	if err != nil {
		return m.Current(), fmt.Errorf("load persona: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(rows) == 0 {
		entries, err := m.current.Entries()
		if err != nil {
			return m.current.Clone(), err
		}
		if err := m.repo.UpsertPersona(ctx, entries); err != nil {
			return m.current.Clone(), fmt.Errorf("seed persona: %w", err)
		}
		m.log.Info("default persona stored", logger.StringField("name", m.current.Name))
		return m.current.Clone(), nil
	}

	loaded, err := m.current.Apply(rows)
	if err != nil {
		return m.current.Clone(), fmt.Errorf("decode stored persona: %w", err)
	}
	m.current = loaded
	m.log.Info("persona loaded from database",
		logger.StringField("name", loaded.Name),
		logger.IntField("keys", len(rows)))
	return loaded.Clone(), nil
}

// Current returns a copy of the live persona.
func (m *Manager) Current() Persona {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Update merges the given rows, validates the result and persists the
// changed keys. Existing keys not named in update are untouched.
func (m *Manager) Update(ctx context.Context, update map[string]json.RawMessage) (Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.current.Apply(update)
	if err != nil {
		return m.current.Clone(), err
	}
	if err := next.Validate(); err != nil {
		return m.current.Clone(), fmt.Errorf("invalid persona: %w", err)
	}
	if err := m.repo.UpsertPersona(ctx, update); err != nil {
		m.log.Error("failed to store persona update", logger.ErrorField(err))
		return m.current.Clone(), fmt.Errorf("store persona: %w", err)
	}

	m.current = next
	m.log.Info("persona updated", logger.IntField("keys", len(update)))
	return next.Clone(), nil
}
