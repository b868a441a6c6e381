package session_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"time"

	"github.com/lewisedginton/sdr_chatbot/internal/storage_manager"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// Role marks who produced a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one message in a session's history.
type Entry struct {
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	MessageType string    `json:"message_type,omitempty"`
	LeadID      string    `json:"lead_id,omitempty"`
	Intent      string    `json:"intent,omitempty"`
}

// SessionInfo summarises one session.
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	LeadID     string    `json:"lead_id,omitempty"`
	Messages   int       `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Config for New. FileProvider is optional; without it history lives only in memory.
type Config struct {
	SnapshotFile string
	FileProvider storage_manager.FileProvider
	// MaxEntries trims the oldest entries of a session beyond this length. Zero keeps everything.
	MaxEntries int
	Logger     logger.Logger
}

type session struct {
	info    SessionInfo
	entries []Entry
}

// snapshot is the on-disk layout.
type snapshot struct {
	Sessions map[string]snapshotSession `json:"sessions"`
}

type snapshotSession struct {
	Info    SessionInfo `json:"info"`
	Entries []Entry     `json:"entries"`
}
