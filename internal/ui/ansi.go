package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"

	fgGray   = "\033[90m"
	fgGreen  = "\033[32m"
	fgYellow = "\033[33m"
	fgBlue   = "\033[34m"
	fgRed    = "\033[31m"
	fgCyan   = "\033[36m"
)

var (
	forceColor   bool
	disableColor bool

	// Stdout and Stderr are where OK, Info, Warn and Fail write.
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

func SetColorForcing(force, disable bool) {
	forceColor = force
	disableColor = disable
}

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

func C(color, s string) string {
	if disableColor || color == "" {
		return s
	}
	if forceColor || (Stdout == os.Stdout && IsTTY(os.Stdout)) {
		return color + s + reset
	}
	return s
}

func OK(msg string)   { fmt.Fprintln(Stdout, C(current.Success, current.SymOK+" "+msg)) }
func Info(msg string) { fmt.Fprintln(Stdout, C(current.Muted, msg)) }
func Warn(msg string) { fmt.Fprintln(Stderr, C(current.Pending, current.SymWarn+" "+msg)) }
func Fail(msg string) { fmt.Fprintln(Stderr, C(current.Error, current.SymFail+" "+msg)) }
