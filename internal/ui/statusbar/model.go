package statusbar

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/shelf/internal/render"
)

var (
	barStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#FFFFFF"))

	viewStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#5FAFFF")).
			Foreground(lipgloss.Color("#000000")).
			Bold(true).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#00FF00")).
			Padding(0, 1)

	notifyStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#FF0000")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	statusTextStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#AAAAAA")).
			Padding(0, 1)

	errorTextStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#8B0000")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)
)

// Model is the status bar at the bottom of the screen.
type Model struct {
	width       int
	view        string
	username    string
	unreadCount int
	statusText  string
	isError     bool
}

// New creates a new status bar.
func New() Model {
	return Model{view: "Home"}
}

// SetSize sets the width.
func (m *Model) SetSize(w int) {
	m.width = w
}

// SetView sets the name of the active view.
func (m *Model) SetView(name string) {
	m.view = name
}

// SetUser sets the signed-in username; "" means signed out.
func (m *Model) SetUser(username string) {
	m.username = username
}

// SetUnread sets the unread notification count.
func (m *Model) SetUnread(count int) {
	m.unreadCount = count
}

// SetStatus sets the latest notification text.
func (m *Model) SetStatus(text string, isError bool) {
	m.statusText = text
	m.isError = isError
}

// Username returns the user shown in the bar.
func (m Model) Username() string {
	return m.username
}

// Update is a no-op for the status bar.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the status bar. The status text is cut to whatever width is
// left after the view name and the right-hand badges.
func (m Model) View() string {
	var right string
	if m.unreadCount > 0 {
		right += notifyStyle.Render(fmt.Sprintf(" %d ", m.unreadCount))
	}
	if m.username != "" {
		right += userStyle.Render(m.username)
	} else {
		right += statusTextStyle.Render("L:login")
	}

	left := viewStyle.Render(m.view)
	room := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if m.statusText != "" && room > 0 {
		style := statusTextStyle
		if m.isError {
			style = errorTextStyle
		}
		left += style.Render(render.Truncate(m.statusText, room))
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, barStyle.Width(gap).Render(""), right)
}
