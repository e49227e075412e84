package register

import (
	"context"
	"net/mail"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/shelf/internal/auth"
	"github.com/fragmede/shelf/internal/ui/messages"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true).Width(10)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#828282"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

const minPasswordLength = 8

type field int

const (
	fieldUsername field = iota
	fieldEmail
	fieldPassword
	fieldConfirm
	fieldCount
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, username, email, password string) auth.Result
}

// Model is the registration form.
type Model struct {
	inputs     [fieldCount]textinput.Model
	focused    field
	actions    Registrar
	err        string
	submitting bool
	width      int
	height     int
}

// New creates a new registration form.
func New(actions Registrar) Model {
	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		in := textinput.New()
		in.CharLimit = 128
		in.Width = 40
		inputs[i] = in
	}
	inputs[fieldUsername].Placeholder = "username"
	inputs[fieldUsername].CharLimit = 50
	inputs[fieldUsername].Focus()
	inputs[fieldEmail].Placeholder = "you@example.com"
	inputs[fieldPassword].Placeholder = "at least 8 characters"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldConfirm].Placeholder = "repeat password"
	inputs[fieldConfirm].EchoMode = textinput.EchoPassword

	return Model{inputs: inputs, actions: actions}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	fw := w - 14
	if fw > 60 {
		fw = 60
	}
	for i := range m.inputs {
		m.inputs[i].Width = fw
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "down":
			m.focused = (m.focused + 1) % fieldCount
			cmd := m.updateFocus()
			return m, cmd
		case "shift+tab", "up":
			m.focused = (m.focused + fieldCount - 1) % fieldCount
			cmd := m.updateFocus()
			return m, cmd
		case "enter":
			if m.focused != fieldConfirm {
				m.focused++
				cmd := m.updateFocus()
				return m, cmd
			}
			return m.submit()
		case "ctrl+s":
			return m.submit()
		}

	case messages.RegisterResultMsg:
		m.submitting = false
		if !msg.Result.Success {
			m.err = msg.Result.Error
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	username := strings.TrimSpace(m.inputs[fieldUsername].Value())
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()

	if err := validate(username, email, password, m.inputs[fieldConfirm].Value()); err != "" {
		m.err = err
		return m, nil
	}

	m.submitting = true
	m.err = ""
	actions := m.actions
	return m, func() tea.Msg {
		return messages.RegisterResultMsg{Result: actions.Register(context.Background(), username, email, password)}
	}
}

// validate applies the backend's basic field rules and returns the first
// violation, or "".
func validate(username, email, password, confirm string) string {
	switch {
	case username == "":
		return "Username is required"
	case email == "":
		return "Email is required"
	case len(password) < minPasswordLength:
		return "Password must be at least 8 characters"
	case password != confirm:
		return "Passwords do not match"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "Enter a valid email address"
	}
	return ""
}

func (m *Model) updateFocus() tea.Cmd {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	return m.inputs[m.focused].Focus()
}

// View renders the registration form.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Create an account"))
	sb.WriteString("\n\n")

	labels := [fieldCount]string{"username", "email", "password", "confirm"}
	for i, label := range labels {
		sb.WriteString(labelStyle.Render(label) + " " + m.inputs[i].View())
		sb.WriteString("\n\n")
	}

	if m.err != "" {
		sb.WriteString(errorStyle.Render(m.err))
		sb.WriteString("\n")
	}

	if m.submitting {
		sb.WriteString("Registering...")
	} else {
		sb.WriteString(hintStyle.Render("Tab to switch fields | Enter on the last field or Ctrl+S to submit | Esc to cancel"))
	}

	content := sb.String()
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
