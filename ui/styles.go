/*
Package ui renders styled step output for fastcert commands.
*/
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	hint = lipgloss.NewStyle().Faint(true).SetString("|")

	Header    = lipgloss.NewStyle().Bold(true).SetString("#").Render
	Hint      = hint.Render
	Underline = lipgloss.NewStyle().Underline(true).Render

	StepAlert = lipgloss.NewStyle().SetString("    " + Announce("!")).Render
	StepDone  = lipgloss.NewStyle().SetString("    -").Render
	StepHint  = hint.SetString("    |").Render

	Accentuate = lipgloss.NewStyle().Italic(true).Render
	Announce   = lipgloss.NewStyle().Background(colorWarn).Render
	Emphasize  = lipgloss.NewStyle().Bold(true).Render
	URL        = lipgloss.NewStyle().Faint(true).Underline(true).Render
	Whisper    = lipgloss.NewStyle().Faint(true).Render

	colorWarn = lipgloss.Color("#d08700")
)

// Driver writes step lines to Out. Quiet drops the step chatter but not
// primary command output written through Printf.
type Driver struct {
	Out io.Writer

	Quiet bool
}

func NewDriver(quiet bool) *Driver {
	return &Driver{
		Out: os.Stdout,

		Quiet: quiet,
	}
}

func (d *Driver) Headerf(format string, args ...any) {
	if d.Quiet {
		return
	}
	fmt.Fprintln(d.Out, Header(" "+fmt.Sprintf(format, args...)))
}

func (d *Driver) Donef(format string, args ...any) {
	if d.Quiet {
		return
	}
	fmt.Fprintln(d.Out, StepDone(" "+fmt.Sprintf(format, args...)))
}

func (d *Driver) Alertf(format string, args ...any) {
	if d.Quiet {
		return
	}
	fmt.Fprintln(d.Out, StepAlert(" "+fmt.Sprintf(format, args...)))
}

func (d *Driver) Hintf(format string, args ...any) {
	if d.Quiet {
		return
	}
	fmt.Fprintln(d.Out, StepHint(" "+fmt.Sprintf(format, args...)))
}

func (d *Driver) Printf(format string, args ...any) {
	fmt.Fprintf(d.Out, format, args...)
}
