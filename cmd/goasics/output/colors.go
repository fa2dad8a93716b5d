// Package output provides console output formatting and colorization.
package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	debugColor   = color.New(color.FgWhite)
	headerColor  = color.New(color.Bold, color.FgWhite)
)

// IsColorEnabled reports whether the environment allows colors on stdout.
// NO_COLOR, a dumb or unset TERM and a redirected stdout all disable them.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" || !IsTerminal(os.Stdout) {
		return false
	}
	switch os.Getenv("TERM") {
	case "", "dumb":
		return false
	}
	return true
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the column count of w, or fallback when w is not a terminal.
func TerminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok {
		return fallback
	}
	if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
		return width
	}
	return fallback
}

// setColorOutput switches colors on or off for every printer.
func setColorOutput(enabled bool) {
	color.NoColor = !enabled
}
