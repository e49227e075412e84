package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Quit     key.Binding
	Back     key.Binding
	Login    key.Binding
	Register key.Binding
	Sessions key.Binding
	Logout   key.Binding
	Notify   key.Binding
}

var Keys = KeyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Login:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "login")),
	Register: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "register")),
	Sessions: key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sessions")),
	Logout:   key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "logout")),
	Notify:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "notifications")),
}

// globalHelp lists the bindings shown on the home view.
func (k KeyMap) globalHelp(signedIn bool) []key.Binding {
	if signedIn {
		return []key.Binding{k.Sessions, k.Notify, k.Logout, k.Quit}
	}
	return []key.Binding{k.Login, k.Register, k.Notify, k.Quit}
}
