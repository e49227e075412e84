package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/auth"
	"github.com/fragmede/shelf/internal/monitor"
	"github.com/fragmede/shelf/internal/render"
	"github.com/fragmede/shelf/internal/ui/messages"
)

const (
	listTitle = "Active sessions"
	errForget = "Could not update the cached session list."
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#828282"))
)

// Source loads the session list.
type Source interface {
	Refresh(ctx context.Context) ([]api.ActiveSession, error)
	Cached() ([]api.ActiveSession, time.Time, error)
	Forget(id string) error
}

// Revoker revokes sessions.
type Revoker interface {
	RevokeSession(ctx context.Context, sessionID string) auth.Result
	CurrentSessionID() string
}

// Model is the active sessions view.
type Model struct {
	list       list.Model
	source     Source
	revoker    Revoker
	currentID  string
	fetchedAt  time.Time
	loading    bool
	revoking   bool
	confirmAll bool
	err        string
	now        func() time.Time
	width      int
	height     int
}

// New creates the sessions view seeded from the cache.
func New(source Source, revoker Revoker) Model {
	l := list.New(nil, Delegate{}, 0, 0)
	l.Title = listTitle
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("session", "sessions")

	m := Model{
		list:      l,
		source:    source,
		revoker:   revoker,
		currentID: revoker.CurrentSessionID(),
		now:       time.Now,
	}
	if cached, fetchedAt, err := source.Cached(); err == nil {
		m.fetchedAt = fetchedAt
		m.setSessions(cached)
	}
	return m
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	// Two lines for the hint below the list.
	m.list.SetSize(w, max(h-2, 0))
}

// Filtering reports whether the filter prompt is taking keystrokes.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// Init starts a refresh.
func (m *Model) Init() tea.Cmd {
	return m.refresh()
}

func (m *Model) refresh() tea.Cmd {
	m.loading = true
	m.list.Title = listTitle + " (refreshing)"
	source := m.source
	return func() tea.Msg {
		_, err := source.Refresh(context.Background())
		if err == nil || errors.Is(err, monitor.ErrBusy) {
			// The monitor delivers SessionsLoadedMsg itself.
			return nil
		}
		return messages.SessionsLoadedMsg{Err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Filtering() {
			break
		}
		if m.confirmAll {
			m.confirmAll = false
			if msg.String() == "y" {
				cmd := m.revoke("")
				return m, cmd
			}
			return m, nil
		}
		switch msg.String() {
		case "r":
			if !m.loading {
				cmd := m.refresh()
				return m, cmd
			}
			return m, nil
		case "x":
			if item, ok := m.list.SelectedItem().(SessionItem); ok {
				cmd := m.revoke(item.ID)
				return m, cmd
			}
			return m, nil
		case "A":
			if len(m.list.Items()) > 1 {
				m.confirmAll = true
			}
			return m, nil
		}

	case messages.SessionsLoadedMsg:
		m.loading = false
		m.list.Title = listTitle
		if msg.Err != nil {
			m.err = "Could not refresh the session list."
			if msg.Sessions == nil {
				return m, nil
			}
		} else {
			m.err = ""
		}
		m.currentID = msg.CurrentID
		m.fetchedAt = msg.FetchedAt
		cmd := m.setSessions(msg.Sessions)
		return m, cmd

	case messages.RevokeResultMsg:
		m.revoking = false
		if !msg.Result.Success || msg.Result.CurrentSession {
			return m, nil
		}
		if msg.SessionID != "" {
			if err := m.source.Forget(msg.SessionID); err != nil {
				m.err = errForget
			}
			m.remove(msg.SessionID)
		}
		cmd := m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) setSessions(active []api.ActiveSession) tea.Cmd {
	now := m.now()
	items := make([]list.Item, 0, len(active))
	for _, s := range active {
		items = append(items, SessionItem{ActiveSession: s, Current: s.ID == m.currentID, Now: now})
	}
	return m.list.SetItems(items)
}

func (m *Model) remove(id string) {
	for i, it := range m.list.Items() {
		if s, ok := it.(SessionItem); ok && s.ID == id {
			m.list.RemoveItem(i)
			return
		}
	}
}

func (m *Model) revoke(id string) tea.Cmd {
	if m.revoking {
		return nil
	}
	m.revoking = true
	revoker := m.revoker
	return func() tea.Msg {
		return messages.RevokeResultMsg{SessionID: id, Result: revoker.RevokeSession(context.Background(), id)}
	}
}

// View renders the session list.
func (m Model) View() string {
	var footer string
	switch {
	case m.confirmAll:
		footer = errorStyle.Render("Revoke every other session? y to confirm, any key to cancel")
	case m.revoking:
		footer = "Revoking..."
	case m.err != "":
		footer = errorStyle.Render(m.err)
	default:
		hint := "x revoke | A revoke all others | r refresh | / filter | esc back"
		if !m.fetchedAt.IsZero() {
			hint += " | updated " + render.TimeAgo(m.fetchedAt, m.now())
		}
		footer = hintStyle.Render(hint)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), "", footer)
}
