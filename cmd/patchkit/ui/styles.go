// Package ui provides console styling for patchkit output.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"patchkit/internal/diff"
)

// Semantic colors.
var (
	Success     = lipgloss.Color("#8BC34A") // Lime Green
	Destructive = lipgloss.Color("#e53935") // Red
	Warning     = lipgloss.Color("#FFC107") // Yellow
	Info        = lipgloss.Color("#2196F3") // Blue
	Muted       = lipgloss.Color("#8a94a6")
)

// Styles holds the styles used by the report printer.
type Styles struct {
	Header  lipgloss.Style
	OK      lipgloss.Style
	Fail    lipgloss.Style
	Warn    lipgloss.Style
	Muted   lipgloss.Style
	Added   lipgloss.Style
	Removed lipgloss.Style
	Hunk    lipgloss.Style
	Plain   bool
}

// DefaultStyles returns colored styles, or plain ones when NO_COLOR is set.
func DefaultStyles() Styles {
	if os.Getenv("NO_COLOR") != "" {
		return PlainStyles()
	}
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(Info),
		OK:      lipgloss.NewStyle().Foreground(Success),
		Fail:    lipgloss.NewStyle().Bold(true).Foreground(Destructive),
		Warn:    lipgloss.NewStyle().Foreground(Warning),
		Muted:   lipgloss.NewStyle().Foreground(Muted),
		Added:   lipgloss.NewStyle().Foreground(Success),
		Removed: lipgloss.NewStyle().Foreground(Destructive),
		Hunk:    lipgloss.NewStyle().Foreground(Info),
	}
}

// PlainStyles renders text unchanged.
func PlainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{
		Header: s, OK: s, Fail: s, Warn: s, Muted: s,
		Added: s, Removed: s, Hunk: s,
		Plain: true,
	}
}

// DiffStyler colors unified diff lines.
func (s Styles) DiffStyler() diff.LineStyler {
	if s.Plain {
		return nil
	}
	return func(t diff.LineType, header bool, line string) string {
		switch {
		case header:
			return s.Hunk.Render(line)
		case t == diff.LineAdded:
			return s.Added.Render(line)
		case t == diff.LineRemoved:
			return s.Removed.Render(line)
		default:
			return line
		}
	}
}
