package ui

import "github.com/charmbracelet/lipgloss"

// Styles are the lipgloss styles the interactive views use.
type Styles struct {
	Title, Muted, Accent, Success, Error, Help lipgloss.Style
	Selected                                   lipgloss.Style
	Column, FocusedColumn                      lipgloss.Style
	Card, SelectedCard                         lipgloss.Style
	Frame, Form                                lipgloss.Style
}

// NewStyles derives TUI styles from the current theme.
func NewStyles() Styles {
	t := current
	color := func(c string) lipgloss.TerminalColor {
		if c == "" {
			return lipgloss.NoColor{}
		}
		return lipgloss.Color(c)
	}
	column := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color(t.Border)).
		Padding(0, 1).
		Width(28)
	return Styles{
		Title:         lipgloss.NewStyle().Bold(true),
		Muted:         lipgloss.NewStyle().Faint(true),
		Accent:        lipgloss.NewStyle().Foreground(color(t.Focus)),
		Success:       lipgloss.NewStyle().Foreground(color(t.Highlight)),
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Help:          lipgloss.NewStyle().Faint(true),
		Selected:      lipgloss.NewStyle().Bold(true).Reverse(true),
		Column:        column,
		FocusedColumn: column.BorderForeground(color(t.Focus)),
		Card:          lipgloss.NewStyle(),
		SelectedCard:  lipgloss.NewStyle().Bold(true).Foreground(color(t.Highlight)),
		Frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color(t.Border)).
			Padding(0, 1),
		Form: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color(t.Focus)).
			Padding(0, 1),
	}
}
