package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#5FAFFF")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(1, 0)

	MetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#828282"))

	KeyStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	UserStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#32CD32")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#32CD32"))
)
