package monitor

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/auth"
)

// Backend lists the caller's sessions and identifies the current one.
type Backend interface {
	ListSessions(ctx context.Context) ([]api.ActiveSession, error)
	SessionTokenID() string
}

// SessionStore is the part of auth.Store the monitor needs.
type SessionStore interface {
	Read() auth.Session
	Generation() uint64
	ClearIf(gen uint64) bool
}

// Sender delivers messages to the TUI; *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}
