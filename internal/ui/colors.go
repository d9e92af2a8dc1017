package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles is the palette used by the CLI.
var Styles = NewPalette("#1DB954", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		label: NewBold(h),
	}
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }

// OK renders a success line prefixed with a check mark.
func (p *Palette) OK(s string) string { return p.ok.Render("✓ " + s) }

// Err renders a failure line prefixed with a cross.
func (p *Palette) Err(s string) string { return p.err.Render("✗ " + s) }

func (p *Palette) Warn(s string) string { return p.warn.Render(s) }

func (p *Palette) Help(s string) string { return p.help.Render(s) }

func (p *Palette) Label(s string) string { return p.label.Render(s) }

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
