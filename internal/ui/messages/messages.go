package messages

import (
	"time"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/auth"
)

// NavigateToLoginMsg asks the root model to show the login view.
type NavigateToLoginMsg struct{}

// Data messages.
type (
	// SessionChangedMsg carries every store mutation to the TUI.
	SessionChangedMsg struct {
		Session auth.Session
	}

	// SessionRestoredMsg reports a session carried over from a previous run.
	SessionRestoredMsg struct {
		Username string
	}

	LoginResultMsg struct {
		Result auth.Result
	}

	RegisterResultMsg struct {
		Result auth.Result
	}

	LogoutResultMsg struct {
		Result auth.Result
	}

	RevokeResultMsg struct {
		SessionID string
		Result    auth.Result
	}

	SessionsLoadedMsg struct {
		Sessions  []api.ActiveSession
		CurrentID string
		FetchedAt time.Time
		Err       error
	}

	// NotifyMsg is a user-facing notification from the session layer.
	NotifyMsg struct {
		Level string
		Text  string
	}

	NewNotificationMsg struct {
		UnreadCount int
	}
)
