package ui

import (
	"strings"
	"testing"

	"patchkit/internal/diff"
)

func TestPlainStylesLeaveTextAlone(t *testing.T) {
	s := PlainStyles()
	if got := s.OK.Render("applied"); got != "applied" {
		t.Errorf("Render = %q", got)
	}
	if s.DiffStyler() != nil {
		t.Error("plain styles should not style diffs")
	}
}

func TestDefaultStylesRespectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if !DefaultStyles().Plain {
		t.Error("NO_COLOR should select plain styles")
	}
}

func TestDiffStylerKeepsContent(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	styler := DefaultStyles().DiffStyler()
	if styler == nil {
		t.Fatal("expected a styler")
	}
	out := styler(diff.LineAdded, false, "+const a = 1;")
	if !strings.Contains(out, "+const a = 1;") {
		t.Errorf("styled line lost content: %q", out)
	}
}

func TestMarkdownRenderer_Plain(t *testing.T) {
	r := NewMarkdownRenderer(80, true)
	if got := r.Render("  # Fix\n\nEdit the file.  "); got != "# Fix\n\nEdit the file.\n" {
		t.Errorf("Render = %q", got)
	}
	if got := r.Render("   "); got != "" {
		t.Errorf("blank Render = %q", got)
	}
}

func TestMarkdownRenderer_Styled(t *testing.T) {
	r := NewMarkdownRenderer(60, false)
	out := r.Render("Replace `foo` with `bar` in **App.tsx**.")
	if !strings.Contains(out, "App.tsx") {
		t.Errorf("rendered markdown lost content: %q", out)
	}
}
