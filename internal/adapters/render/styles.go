// Package render prints API objects and ingestion progress for the CLI as
// styled tables, JSON or YAML.
package render

import "github.com/charmbracelet/lipgloss"

var (
	primary     = lipgloss.Color("#101F38")
	muted       = lipgloss.Color("#8a93a3")
	destructive = lipgloss.Color("#e53935")
	success     = lipgloss.Color("#8BC34A")
	warning     = lipgloss.Color("#FFC107")
	info        = lipgloss.Color("#2196F3")
)

// Styles groups the lipgloss styles used by every view.
type Styles struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(primary).Bold(true),
		Bold:    lipgloss.NewStyle().Bold(true),
		Body:    lipgloss.NewStyle(),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Success: lipgloss.NewStyle().Foreground(success),
		Error:   lipgloss.NewStyle().Foreground(destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(warning),
		Info:    lipgloss.NewStyle().Foreground(info),
	}
}
