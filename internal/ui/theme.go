package ui

import (
	"fmt"
	"strings"
)

// Theme bundles palette, symbols and box borders. Every helper in this
// package reads the current theme.
type Theme struct {
	Name                                   string
	Title, Muted, Accent, Success, Error   string
	Pending                                string
	CornerTL, CornerTR, CornerBL, CornerBR string
	H, V                                   string
	SymOK, SymFail, SymWarn                string
	Bullet, Cursor, Due, Owner             string
	MeterFull, MeterEmpty                  string

	// lipgloss colors for the TUI
	Focus, Border, Highlight string
}

var themes = map[string]Theme{
	"classic": {
		Name:  "classic",
		Title: bold, Muted: fgGray, Accent: fgBlue,
		Success: fgGreen, Error: fgRed, Pending: fgYellow,
		CornerTL: "┌", CornerTR: "┐", CornerBL: "└", CornerBR: "┘",
		H: "─", V: "│",
		SymOK: "✔", SymFail: "✖", SymWarn: "!",
		Bullet: "•", Cursor: "›", Due: "⏰", Owner: "★",
		MeterFull: "█", MeterEmpty: "░",
		Focus: "12", Border: "8", Highlight: "42",
	},
	"neon": {
		Name:  "neon",
		Title: "\033[95m", Muted: fgGray, Accent: "\033[96m",
		Success: fgGreen, Error: fgRed, Pending: "\033[93m",
		CornerTL: "╭", CornerTR: "╮", CornerBL: "╰", CornerBR: "╯",
		H: "─", V: "│",
		SymOK: "✔", SymFail: "✖", SymWarn: "▲",
		Bullet: "◆", Cursor: "▶", Due: "⏰", Owner: "✦",
		MeterFull: "▰", MeterEmpty: "▱",
		Focus: "201", Border: "93", Highlight: "51",
	},
	"mono": {
		Name:     "mono",
		CornerTL: "+", CornerTR: "+", CornerBL: "+", CornerBR: "+",
		H: "-", V: "|",
		SymOK: "ok", SymFail: "error:", SymWarn: "warning:",
		Bullet: "-", Cursor: ">", Due: "due", Owner: "*",
		MeterFull: "#", MeterEmpty: ".",
	},
}

var current = themes["classic"]

// Themes lists the known theme names.
func Themes() []string { return []string{"classic", "neon", "mono"} }

// SetTheme switches the current theme. Unknown names are an error and leave
// the theme unchanged.
func SetTheme(name string) error {
	if name == "" {
		name = "classic"
	}
	t, ok := themes[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown theme %q (have %s)", name, strings.Join(Themes(), ", "))
	}
	current = t
	disableColor = t.Name == "mono"
	return nil
}

func Current() Theme { return current }
