// Package session_manager keeps the per-session conversation history the
// pipeline reads its recent turns from.
package session_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
	"github.com/lewisedginton/sdr_chatbot/pkg/prefixed_uuid"
)

// ErrSessionNotFound is returned by Clear for an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// Manager is an append-only history per session, clearable as a whole.
type Manager interface {
	// NewSession allocates a fresh session ID.
	NewSession(ctx context.Context, leadID string) string
	Append(ctx context.Context, sessionID string, entries ...Entry) error
	// Recent returns at most n of the newest entries, oldest first.
	Recent(ctx context.Context, sessionID string, n int) []Entry
	History(ctx context.Context, sessionID string) []Entry
	Clear(ctx context.Context, sessionID string) error
	// Sessions lists sessions by LastActive, newest first.
	Sessions(ctx context.Context) []SessionInfo
}

type sessionManager struct {
	config   Config
	mu       sync.RWMutex
	sessions map[string]*session
	fileMu   sync.Mutex
	now      func() time.Time
}

// New builds a Manager and, when a FileProvider is configured, restores the last snapshot.
func New(cfg Config) (Manager, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.FileProvider != nil && cfg.SnapshotFile == "" {
		return nil, fmt.Errorf("snapshot file is required when a file provider is set")
	}

	m := &sessionManager{
		config:   cfg,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
	if err := m.load(context.Background()); err != nil {
		return nil, fmt.Errorf("load history snapshot: %w", err)
	}
	return m, nil
}

func (m *sessionManager) NewSession(ctx context.Context, leadID string) string {
	id := prefixed_uuid.New("session").String()
	now := m.now()

	m.mu.Lock()
	m.sessions[id] = &session{info: SessionInfo{SessionID: id, LeadID: leadID, CreatedAt: now, LastActive: now}}
	m.mu.Unlock()

	m.config.Logger.Debug("session created", logger.SessionIDField(id))
	return id
}

func (m *sessionManager) Append(ctx context.Context, sessionID string, entries ...Entry) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{info: SessionInfo{SessionID: sessionID, CreatedAt: m.now()}}
		m.sessions[sessionID] = s
	}
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			e.Timestamp = m.now()
		}
		if s.info.LeadID == "" && e.LeadID != "" {
			s.info.LeadID = e.LeadID
		}
		s.entries = append(s.entries, e)
	}
	if limit := m.config.MaxEntries; limit > 0 && len(s.entries) > limit {
		s.entries = append([]Entry(nil), s.entries[len(s.entries)-limit:]...)
	}
	s.info.Messages = len(s.entries)
	s.info.LastActive = m.now()
	m.mu.Unlock()

	m.persist(ctx, sessionID)
	return nil
}

func (m *sessionManager) Recent(ctx context.Context, sessionID string, n int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok || n <= 0 {
		return nil
	}
	from := max(len(s.entries)-n, 0)
	return append([]Entry(nil), s.entries[from:]...)
}

func (m *sessionManager) History(ctx context.Context, sessionID string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]Entry(nil), s.entries...)
}

func (m *sessionManager) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.entries = nil
	s.info.Messages = 0
	s.info.LastActive = m.now()
	m.mu.Unlock()

	m.persist(ctx, sessionID)
	m.config.Logger.Info("session history cleared", logger.SessionIDField(sessionID))
	return nil
}

func (m *sessionManager) Sessions(ctx context.Context) []SessionInfo {
	m.mu.RLock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out
}

// persist writes the snapshot. Failures are logged; history stays authoritative in memory.
func (m *sessionManager) persist(ctx context.Context, sessionID string) {
	if m.config.FileProvider == nil {
		return
	}
	if err := m.save(ctx); err != nil {
		m.config.Logger.Warn("failed to save history snapshot",
			logger.SessionIDField(sessionID),
			logger.ErrorField(err))
	}
}
