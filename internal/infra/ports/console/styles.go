package console

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#22d3ee")
	success = lipgloss.Color("#10B981")
	warning = lipgloss.Color("#F59E0B")
	danger  = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#6B7280")

	systemStyle   = lipgloss.NewStyle().Foreground(muted).Italic(true)
	nameStyle     = lipgloss.NewStyle().Foreground(accent).Bold(true)
	ownNameStyle  = lipgloss.NewStyle().Foreground(success).Bold(true)
	reactionStyle = lipgloss.NewStyle().Foreground(warning)
	errorStyle    = lipgloss.NewStyle().Foreground(danger).Bold(true)
)
