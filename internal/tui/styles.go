package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/iaptsiauri/pit/pkg/models"
)

var (
	colorBorder = lipgloss.Color("240")
	colorMuted  = lipgloss.Color("244")
	colorIdle   = lipgloss.Color("252")
	colorRun    = lipgloss.Color("34")
	colorDone   = lipgloss.Color("28")
	colorError  = lipgloss.Color("196")
	colorAccent = lipgloss.Color("39")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			PaddingLeft(1)

	headerRowStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15")).
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	statusOKStyle = lipgloss.NewStyle().Foreground(colorDone)

	statusErrStyle = lipgloss.NewStyle().Foreground(colorError).Bold(true)

	formBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	insertStyle = lipgloss.NewStyle().Foreground(colorRun)
	deleteStyle = lipgloss.NewStyle().Foreground(colorError)
)

// statusStyle colors a task status.
func statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.TaskStatusRunning:
		return lipgloss.NewStyle().Foreground(colorRun).Bold(true)
	case models.TaskStatusDone:
		return lipgloss.NewStyle().Foreground(colorDone)
	default:
		return lipgloss.NewStyle().Foreground(colorIdle)
	}
}

// statusIcon is the glyph shown before a status.
func statusIcon(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusRunning:
		return "●"
	case models.TaskStatusDone:
		return "✓"
	default:
		return "○"
	}
}
