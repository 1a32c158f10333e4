package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Meter renders a fraction in [0,1] as a bar with a percentage, e.g. the
// similarity of a related card.
func Meter(frac float64, width int) string {
	if width < 5 {
		width = 5
	}
	switch {
	case frac < 0:
		frac = 0
	case frac > 1:
		frac = 1
	}
	filled := int(frac * float64(width))
	bar := strings.Repeat(current.MeterFull, filled) + strings.Repeat(current.MeterEmpty, width-filled)
	return fmt.Sprintf("%s %3d%%", bar, int(frac*100+0.5))
}

// RenderPanel frames lines in a box using the current theme.
func RenderPanel(lines []string) string {
	t := current
	maxw := 0
	for _, ln := range lines {
		if w := lipgloss.Width(ln); w > maxw {
			maxw = w
		}
	}
	var b strings.Builder
	b.WriteString(t.CornerTL + strings.Repeat(t.H, maxw+2) + t.CornerTR + "\n")
	for _, ln := range lines {
		pad := strings.Repeat(" ", maxw-lipgloss.Width(ln))
		b.WriteString(t.V + " " + ln + pad + " " + t.V + "\n")
	}
	b.WriteString(t.CornerBL + strings.Repeat(t.H, maxw+2) + t.CornerBR + "\n")
	return b.String()
}

// Panel prints a framed box to Stdout.
func Panel(lines []string) { fmt.Fprint(Stdout, RenderPanel(lines)) }

// Truncate shortens s to at most n visible cells.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
