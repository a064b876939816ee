package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders recipe descriptions and fallback instructions.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer wrapping at width columns. With
// plain set, markdown is printed as-is.
func NewMarkdownRenderer(width int, plain bool) *MarkdownRenderer {
	if plain {
		return &MarkdownRenderer{}
	}
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &MarkdownRenderer{}
	}
	return &MarkdownRenderer{renderer: r}
}

// Render returns md formatted for the terminal. Rendering errors fall back
// to the raw text.
func (m *MarkdownRenderer) Render(md string) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if m.renderer == nil {
		return md + "\n"
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}
