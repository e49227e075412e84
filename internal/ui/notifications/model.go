package notifications

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/shelf/internal/cache"
	"github.com/fragmede/shelf/internal/render"
	"github.com/fragmede/shelf/internal/ui/messages"
)

const pageSize = 50

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")).Bold(true).Padding(1, 0)
	notifStyle     = lipgloss.NewStyle().Padding(0, 1)
	selectedStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#333333")).Padding(0, 1)
	unreadDotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#32CD32"))
	textStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
)

// Model is the notification log view.
type Model struct {
	notifications []cache.Notification
	selectedIdx   int
	db            *cache.DB
	width         int
	height        int
}

// New creates a new notifications model.
func New(db *cache.DB) Model {
	return Model{db: db}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Load refreshes the notification list from the database.
func (m *Model) Load() {
	list, err := m.db.Notifications(pageSize)
	if err != nil {
		return
	}
	m.notifications = list
	if m.selectedIdx >= len(list) {
		m.selectedIdx = 0
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if m.selectedIdx < len(m.notifications)-1 {
				m.selectedIdx++
			}
		case "k", "up":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "m":
			if err := m.db.MarkNotificationsRead(); err != nil {
				return m, nil
			}
			for i := range m.notifications {
				m.notifications[i].Read = true
			}
			return m, func() tea.Msg { return messages.NewNotificationMsg{UnreadCount: 0} }
		}

	case messages.NotifyMsg:
		m.Load()
	}
	return m, nil
}

// View renders the notifications list.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Notifications"))
	sb.WriteString("\n")

	if len(m.notifications) == 0 {
		sb.WriteString("\n  No notifications yet.\n")
		return sb.String()
	}

	now := time.Now()
	for i, n := range m.notifications {
		var line strings.Builder

		if !n.Read {
			line.WriteString(unreadDotStyle.Render("● "))
		} else {
			line.WriteString("  ")
		}

		style := textStyle
		switch n.Level {
		case "error":
			style = errorStyle
		case "success":
			style = successStyle
		}
		line.WriteString(style.Render(render.Wrap(n.Text, max(m.width-20, 20))))
		line.WriteString(metaStyle.Render("  " + render.TimeAgo(n.CreatedAt, now)))

		entry := line.String()
		if i == m.selectedIdx {
			entry = selectedStyle.Render(entry)
		} else {
			entry = notifStyle.Render(entry)
		}
		sb.WriteString(entry + "\n")
	}
	sb.WriteString("\n" + metaStyle.Render("j/k move | m mark all read | esc back"))

	return sb.String()
}

// UnreadCount returns the number of unread notifications.
func (m Model) UnreadCount() int {
	count := 0
	for _, n := range m.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}
