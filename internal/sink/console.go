package sink

import (
	"io"

	"github.com/fatih/color"
)

// Console prints run messages for people watching a terminal.
type Console struct {
	out      io.Writer
	info     *color.Color
	critical *color.Color
	accent   *color.Color
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:      out,
		info:     color.New(color.FgWhite),
		critical: color.New(color.FgRed, color.Bold),
		accent:   color.New(color.FgYellow),
	}
}

// Info prints a progress message.
func (c *Console) Info(msg string) {
	c.info.Fprintln(c.out, msg)
}

// Critical prints a failure message.
func (c *Console) Critical(msg string) {
	c.critical.Fprintln(c.out, msg)
}

// Accent prints a highlighted message.
func (c *Console) Accent(msg string) {
	c.accent.Fprintln(c.out, msg)
}

// Banner prints the start-of-run header.
func (c *Console) Banner(version string) {
	c.accent.Fprintln(c.out, "   GitHub Watchman")
	c.info.Fprintf(c.out, "   Version: %s\n", version)
	c.info.Fprintln(c.out, "   Finding exposed secrets and personal data in GitHub")
	c.info.Fprintln(c.out, "")
}

// Writer returns the destination of console output.
func (c *Console) Writer() io.Writer {
	return c.out
}
