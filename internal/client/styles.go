package client

import "github.com/charmbracelet/lipgloss"

var (
	Accent = lipgloss.Color("#5EEAD4")
	Subtle = lipgloss.Color("#6B7280")
	Red    = lipgloss.Color("#EF4444")
	Yellow = lipgloss.Color("#FDE68A")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	dimStyle     = lipgloss.NewStyle().Foreground(Subtle)
	timeStyle    = lipgloss.NewStyle().Foreground(Yellow)
	nickStyle    = lipgloss.NewStyle().Bold(true)
	selfStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#93C5FD"))
	errStyle     = lipgloss.NewStyle().Foreground(Red).Bold(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(Red)
	channelStyle = lipgloss.NewStyle().Foreground(Accent).Bold(true)
)
