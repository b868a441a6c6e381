package session_manager

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

func (m *sessionManager) load(ctx context.Context) error {
	if m.config.FileProvider == nil {
		return nil
	}
	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	exists, err := m.config.FileProvider.Exists(ctx, m.config.SnapshotFile)
	if err != nil {
		return fmt.Errorf("check snapshot: %w", err)
	}
	if !exists {
		m.config.Logger.Info("no history snapshot, starting empty")
		return nil
	}

	data, err := m.config.FileProvider.Read(ctx, m.config.SnapshotFile)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	m.mu.Lock()
	for id, s := range snap.Sessions {
		m.sessions[id] = &session{info: s.Info, entries: s.Entries}
	}
	m.mu.Unlock()

	m.config.Logger.Info("history snapshot loaded",
		logger.StringField("file", m.config.SnapshotFile),
		logger.IntField("sessions", len(snap.Sessions)))
	return nil
}

func (m *sessionManager) save(ctx context.Context) error {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	m.mu.RLock()
	snap := snapshot{Sessions: make(map[string]snapshotSession, len(m.sessions))}
	for id, s := range m.sessions {
		snap.Sessions[id] = snapshotSession{Info: s.info, Entries: append([]Entry(nil), s.entries...)}
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return m.config.FileProvider.Write(ctx, m.config.SnapshotFile, data)
}
