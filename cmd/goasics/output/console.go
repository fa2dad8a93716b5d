package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Verbosity levels
type Verbosity int

const (
	// VerbosityQuiet shows errors only
	VerbosityQuiet Verbosity = iota
	// VerbosityNormal shows errors, warnings and results (default)
	VerbosityNormal
	// VerbosityDetailed adds per-entry details
	VerbosityDetailed
	// VerbosityDiagnostic adds debug output
	VerbosityDiagnostic
)

// Console writes user-facing output. It is safe for concurrent use.
type Console struct {
	out       io.Writer
	err       io.Writer
	verbosity Verbosity
	mu        sync.Mutex
	colors    bool
}

// NewConsole creates a new console
func NewConsole(out, err io.Writer, verbosity Verbosity) *Console {
	c := &Console{
		out:       out,
		err:       err,
		verbosity: verbosity,
		colors:    IsColorEnabled() && IsTerminal(out),
	}
	if !c.colors {
		setColorOutput(false)
	}
	return c
}

// DefaultConsole creates a console on stdout and stderr with normal verbosity.
func DefaultConsole() *Console {
	return NewConsole(os.Stdout, os.Stderr, VerbosityNormal)
}

// Out returns the writer for regular output.
func (c *Console) Out() io.Writer { return c.out }

// Err returns the writer for diagnostics.
func (c *Console) Err() io.Writer { return c.err }

// SetVerbosity sets the verbosity level
func (c *Console) SetVerbosity(v Verbosity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbosity = v
}

// GetVerbosity returns the current verbosity level
func (c *Console) GetVerbosity() Verbosity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbosity
}

// SetColors enables or disables color output
func (c *Console) SetColors(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.colors = enabled
	setColorOutput(enabled)
}

// Println writes a line to output regardless of verbosity.
func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, a...)
}

// Printf writes formatted output regardless of verbosity.
func (c *Console) Printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, a...)
}

// Header writes a bold section title.
func (c *Console) Header(format string, a ...any) {
	c.write(c.out, VerbosityNormal, headerColor, "", format, a...)
}

// Success writes a green message.
func (c *Console) Success(format string, a ...any) {
	c.write(c.out, VerbosityNormal, successColor, "", format, a...)
}

// Error writes a red message to the error stream. Errors ignore verbosity.
func (c *Console) Error(format string, a ...any) {
	c.write(c.err, VerbosityQuiet, errorColor, "Error: ", format, a...)
}

// Warning writes a yellow message to the error stream.
func (c *Console) Warning(format string, a ...any) {
	c.write(c.err, VerbosityNormal, warningColor, "Warning: ", format, a...)
}

// Info writes a cyan message.
func (c *Console) Info(format string, a ...any) {
	c.write(c.out, VerbosityNormal, infoColor, "", format, a...)
}

// Detail writes an uncolored message shown at detailed verbosity.
func (c *Console) Detail(format string, a ...any) {
	c.write(c.out, VerbosityDetailed, nil, "", format, a...)
}

// Debug writes a message shown at diagnostic verbosity.
func (c *Console) Debug(format string, a ...any) {
	c.write(c.out, VerbosityDiagnostic, debugColor, "[DEBUG] ", format, a...)
}

// Table writes rows as aligned columns. The first row is the header.
// On a terminal, lines longer than the screen are cut with an ellipsis.
func (c *Console) Table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	limit := 0
	if IsTerminal(c.out) {
		limit = TerminalWidth(c.out, 0)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for r, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(row)-1 {
				b.WriteString(cell)
				continue
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		}
		line := clip(strings.TrimRight(b.String(), " "), limit)
		if r == 0 && c.colors {
			_, _ = headerColor.Fprintln(c.out, line)
			continue
		}
		_, _ = fmt.Fprintln(c.out, line)
	}
}

// clip shortens s to limit runes; zero means no limit.
func clip(s string, limit int) string {
	r := []rune(s)
	if limit <= 1 || len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

type colorPrinter interface {
	Fprintf(w io.Writer, format string, a ...any) (int, error)
}

func (c *Console) write(w io.Writer, level Verbosity, col colorPrinter, prefix, format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verbosity < level {
		return
	}
	if c.colors && col != nil {
		_, _ = col.Fprintf(w, prefix+format+"\n", a...)
		return
	}
	_, _ = fmt.Fprintf(w, prefix+format+"\n", a...)
}
