// Package tui runs the questionnaire in a terminal.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent      = lipgloss.Color("#2563EB")
	success     = lipgloss.Color("#16A34A")
	destructive = lipgloss.Color("#DC2626")
	muted       = lipgloss.Color("#6B7280")
)

// Styles groups the lipgloss styles used by the views.
type Styles struct {
	Title       lipgloss.Style
	Step        lipgloss.Style
	Prompt      lipgloss.Style
	Description lipgloss.Style
	Choice      lipgloss.Style
	Selected    lipgloss.Style
	Error       lipgloss.Style
	Good        lipgloss.Style
	Bad         lipgloss.Style
	Box         lipgloss.Style
	Help        lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1),
		Step:        lipgloss.NewStyle().Foreground(muted),
		Prompt:      lipgloss.NewStyle().Bold(true),
		Description: lipgloss.NewStyle().Foreground(muted).Italic(true),
		Choice:      lipgloss.NewStyle().PaddingLeft(2),
		Selected:    lipgloss.NewStyle().PaddingLeft(0).Foreground(accent).Bold(true),
		Error:       lipgloss.NewStyle().Foreground(destructive),
		Good:        lipgloss.NewStyle().Foreground(success).Bold(true),
		Bad:         lipgloss.NewStyle().Foreground(destructive).Bold(true),
		Box:         lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1),
		Help:        lipgloss.NewStyle().Foreground(muted).MarginTop(1),
	}
}
