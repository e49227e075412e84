package notifications

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/shelf/internal/cache"
	"github.com/fragmede/shelf/internal/ui/messages"
)

func TestNotificationLog(t *testing.T) {
	db, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()

	m := New(db)
	m.SetSize(100, 30)
	m.Load()
	assert.Contains(t, m.View(), "No notifications yet.")

	require.NoError(t, db.AddNotification("error", "Session expired. Please log in again."))
	m, _ = m.Update(messages.NotifyMsg{Level: "error", Text: "Session expired. Please log in again."})
	require.Equal(t, 1, m.UnreadCount())
	assert.Contains(t, m.View(), "Session expired.")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	require.NotNil(t, cmd)
	assert.Equal(t, messages.NewNotificationMsg{UnreadCount: 0}, cmd())
	assert.Zero(t, m.UnreadCount())
	assert.Zero(t, db.UnreadNotificationCount())
}
