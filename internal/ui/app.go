package ui

import (
	"context"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fragmede/shelf/internal/auth"
	"github.com/fragmede/shelf/internal/cache"
	"github.com/fragmede/shelf/internal/monitor"
	"github.com/fragmede/shelf/internal/ui/login"
	"github.com/fragmede/shelf/internal/ui/messages"
	"github.com/fragmede/shelf/internal/ui/notifications"
	"github.com/fragmede/shelf/internal/ui/register"
	"github.com/fragmede/shelf/internal/ui/sessions"
	"github.com/fragmede/shelf/internal/ui/statusbar"
)

// ViewType identifies the active view.
type ViewType int

const (
	ViewHome ViewType = iota
	ViewLogin
	ViewRegister
	ViewSessions
	ViewNotifications
)

var viewNames = map[ViewType]string{
	ViewHome:          "Home",
	ViewLogin:         "Sign in",
	ViewRegister:      "Register",
	ViewSessions:      "Sessions",
	ViewNotifications: "Notifications",
}

// App is the root Bubble Tea model.
type App struct {
	// View state
	activeView    ViewType
	previousViews []ViewType

	// Child models
	loginForm     login.Model
	registerForm  register.Model
	sessions      sessions.Model
	notifications notifications.Model
	statusBar     statusbar.Model

	// Shared state
	coord      *auth.Coordinator
	monitor    *monitor.Monitor
	cache      *cache.DB
	log        *slog.Logger
	session    auth.Session
	loggingOut bool

	// Dimensions
	width  int
	height int
}

// NewApp creates the root application model.
func NewApp(coord *auth.Coordinator, mon *monitor.Monitor, db *cache.DB, log *slog.Logger) *App {
	a := &App{
		activeView:    ViewHome,
		statusBar:     statusbar.New(),
		notifications: notifications.New(db),
		coord:         coord,
		monitor:       mon,
		cache:         db,
		log:           log,
	}
	a.setSession(coord.Store.Read())
	a.statusBar.SetUnread(db.UnreadNotificationCount())
	return a
}

// Init starts the application.
func (a *App) Init() tea.Cmd {
	session := a.session
	return func() tea.Msg {
		if !session.IsAuthenticated {
			return nil
		}
		return messages.SessionRestoredMsg{Username: session.User.Username}
	}
}

// Update handles all messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentHeight := msg.Height - 1 // Reserve 1 line for status bar.
		a.statusBar.SetSize(msg.Width)
		a.notifications.SetSize(msg.Width, contentHeight)
		// Only resize lazily-created views if they're currently active.
		switch a.activeView {
		case ViewLogin:
			a.loginForm.SetSize(msg.Width, contentHeight)
		case ViewRegister:
			a.registerForm.SetSize(msg.Width, contentHeight)
		case ViewSessions:
			a.sessions.SetSize(msg.Width, contentHeight)
		}
		return a, nil

	case tea.KeyMsg:
		if a.activeView == ViewSessions && a.sessions.Filtering() {
			// The filter prompt owns esc.
			if msg.String() == "ctrl+c" {
				return a, tea.Quit
			}
			break
		}
		if a.activeView == ViewLogin || a.activeView == ViewRegister {
			// Text input views only reserve esc and ctrl+c.
			switch msg.String() {
			case "esc":
				return a, a.goBack()
			case "ctrl+c":
				return a, tea.Quit
			}
			break
		}
		switch {
		case msg.String() == "ctrl+c":
			return a, tea.Quit
		case key.Matches(msg, Keys.Quit):
			if a.activeView == ViewHome {
				return a, tea.Quit
			}
			return a, a.goBack()
		case key.Matches(msg, Keys.Back):
			return a, a.goBack()
		case key.Matches(msg, Keys.Login):
			if !a.session.IsAuthenticated {
				a.openLogin()
			}
			return a, nil
		case key.Matches(msg, Keys.Register):
			if !a.session.IsAuthenticated {
				a.openRegister()
			}
			return a, nil
		case key.Matches(msg, Keys.Sessions):
			if a.session.IsAuthenticated && a.activeView != ViewSessions {
				return a, a.openSessions()
			}
			return a, nil
		case key.Matches(msg, Keys.Logout):
			if a.session.IsAuthenticated && !a.loggingOut {
				return a, a.logout()
			}
			return a, nil
		case key.Matches(msg, Keys.Notify):
			if a.activeView != ViewNotifications {
				a.pushView(ViewNotifications)
				a.notifications.Load()
			}
			return a, nil
		}

	case messages.NavigateToLoginMsg:
		a.resetViews()
		a.openLogin()
		return a, nil

	case messages.SessionChangedMsg:
		a.setSession(msg.Session)
		if !msg.Session.IsAuthenticated && a.activeView == ViewSessions {
			a.resetViews()
		}

	case messages.SessionRestoredMsg:
		a.statusBar.SetStatus("Signed in as "+msg.Username, false)
		return a, nil

	case messages.LoginResultMsg:
		if msg.Result.Success {
			a.resetViews()
			return a, nil
		}
		// Let the login form show the error.

	case messages.RegisterResultMsg:
		if msg.Result.Success {
			a.resetViews()
			a.openLogin()
			return a, nil
		}

	case messages.LogoutResultMsg:
		a.loggingOut = false
		a.resetViews()
		return a, nil

	case messages.NotifyMsg:
		a.statusBar.SetStatus(msg.Text, msg.Level == LevelError)

	case messages.NewNotificationMsg:
		a.statusBar.SetUnread(msg.UnreadCount)
	}

	// Route to active view.
	var cmd tea.Cmd
	switch a.activeView {
	case ViewLogin:
		a.loginForm, cmd = a.loginForm.Update(msg)
		cmds = append(cmds, cmd)
	case ViewRegister:
		a.registerForm, cmd = a.registerForm.Update(msg)
		cmds = append(cmds, cmd)
	case ViewSessions:
		a.sessions, cmd = a.sessions.Update(msg)
		cmds = append(cmds, cmd)
	case ViewNotifications:
		a.notifications, cmd = a.notifications.Update(msg)
		cmds = append(cmds, cmd)
	}

	a.statusBar, cmd = a.statusBar.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// View renders the application.
func (a *App) View() string {
	var content string
	switch a.activeView {
	case ViewHome:
		content = a.homeView()
	case ViewLogin:
		content = a.loginForm.View()
	case ViewRegister:
		content = a.registerForm.View()
	case ViewSessions:
		content = a.sessions.View()
	case ViewNotifications:
		content = a.notifications.View()
	}

	content = lipgloss.NewStyle().Height(max(a.height-1, 0)).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, content, a.statusBar.View())
}

func (a *App) homeView() string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("shelf"))
	sb.WriteString("\n")
	if a.session.IsAuthenticated {
		sb.WriteString("Signed in as " + UserStyle.Render(a.session.User.Username))
		sb.WriteString(MetaStyle.Render(" <" + a.session.User.Email + ">"))
	} else {
		sb.WriteString(MetaStyle.Render("Not signed in."))
	}
	sb.WriteString("\n\n")
	for _, b := range Keys.globalHelp(a.session.IsAuthenticated) {
		h := b.Help()
		sb.WriteString("  " + KeyStyle.Render(h.Key) + "  " + h.Desc + "\n")
	}
	return lipgloss.NewStyle().Padding(0, 2).Render(sb.String())
}

func (a *App) setSession(s auth.Session) {
	a.session = s
	if s.IsAuthenticated {
		a.statusBar.SetUser(s.User.Username)
	} else {
		a.statusBar.SetUser("")
	}
}

func (a *App) openLogin() {
	if a.activeView == ViewLogin {
		return
	}
	a.pushView(ViewLogin)
	a.loginForm = login.New(a.coord.Actions)
	a.loginForm.SetSize(a.width, a.height-1)
}

func (a *App) openRegister() {
	a.pushView(ViewRegister)
	a.registerForm = register.New(a.coord.Actions)
	a.registerForm.SetSize(a.width, a.height-1)
}

func (a *App) openSessions() tea.Cmd {
	a.pushView(ViewSessions)
	a.sessions = sessions.New(a.monitor, a.coord.Actions)
	a.sessions.SetSize(a.width, a.height-1)
	return a.sessions.Init()
}

func (a *App) logout() tea.Cmd {
	a.loggingOut = true
	a.statusBar.SetStatus("Signing out...", false)
	actions := a.coord.Actions
	return func() tea.Msg {
		return messages.LogoutResultMsg{Result: actions.Logout(context.Background())}
	}
}

func (a *App) pushView(v ViewType) {
	a.previousViews = append(a.previousViews, a.activeView)
	a.setView(v)
}

func (a *App) goBack() tea.Cmd {
	if len(a.previousViews) > 0 {
		prev := a.previousViews[len(a.previousViews)-1]
		a.previousViews = a.previousViews[:len(a.previousViews)-1]
		a.setView(prev)
	} else if a.activeView != ViewHome {
		a.setView(ViewHome)
	}
	return nil
}

func (a *App) resetViews() {
	a.previousViews = nil
	a.setView(ViewHome)
}

// setView switches the active view and keeps session polling running only
// while the sessions view is visible.
func (a *App) setView(v ViewType) {
	a.activeView = v
	a.statusBar.SetView(viewNames[v])
	if v == ViewSessions {
		a.monitor.Start()
	} else {
		a.monitor.Stop()
	}
}
