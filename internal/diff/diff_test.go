package diff

import (
	"strings"
	"testing"
)

func TestComputeDiff_SimpleAddition(t *testing.T) {
	oldContent := "line1\nline2\nline3\n"
	newContent := "line1\nline2\nline2.5\nline3\n"

	d := NewEngine(DefaultContext).ComputeDiff("a.ts", "a.ts", oldContent, newContent)

	if len(d.Hunks) != 1 {
		t.Fatalf("Expected 1 hunk, got %d", len(d.Hunks))
	}
	if d.IsNew || d.IsDelete {
		t.Error("Should not be marked as new or delete")
	}
	added, removed := d.Stats()
	if added != 1 || removed != 0 {
		t.Errorf("Stats = +%d -%d, want +1 -0", added, removed)
	}
}

func TestComputeDiff_SimpleDeletion(t *testing.T) {
	oldContent := "line1\nline2\nline3\nline4\n"
	newContent := "line1\nline2\nline4\n"

	d := NewEngine(DefaultContext).ComputeDiff("a.ts", "a.ts", oldContent, newContent)

	hasRemoval := false
	for _, hunk := range d.Hunks {
		for _, line := range hunk.Lines {
			if line.Type == LineRemoved && line.Content == "line3" {
				hasRemoval = true
				if line.LineNum != 3 {
					t.Errorf("removed line number = %d, want 3", line.LineNum)
				}
			}
		}
	}
	if !hasRemoval {
		t.Error("Expected to find removed line 'line3'")
	}
}

func TestComputeDiff_NewAndDeletedFile(t *testing.T) {
	e := NewEngine(DefaultContext)
	if d := e.ComputeDiff("", "new.css", "", "a {}\n"); !d.IsNew {
		t.Error("Expected diff to be marked as new file")
	}
	if d := e.ComputeDiff("old.css", "", "a {}\n", ""); !d.IsDelete {
		t.Error("Expected diff to be marked as deleted file")
	}
}

func TestComputeDiff_NoChanges(t *testing.T) {
	content := "line1\nline2\nline3\n"
	d := NewEngine(DefaultContext).ComputeDiff("f", "f", content, content)
	if !d.Empty() {
		t.Errorf("Expected 0 hunks for identical content, got %d", len(d.Hunks))
	}
}

func TestComputeDiff_MultipleHunks(t *testing.T) {
	var oldLines []string
	for i := 1; i <= 20; i++ {
		oldLines = append(oldLines, "line"+string(rune('a'+i)))
	}
	newLines := append([]string(nil), oldLines...)
	newLines[1] = "CHANGED-2"
	newLines[17] = "CHANGED-18"

	d := NewEngine(DefaultContext).ComputeDiff("f", "f", strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")
	if len(d.Hunks) != 2 {
		t.Fatalf("Expected 2 hunks for distant changes, got %d", len(d.Hunks))
	}
}

func TestComputeDiff_CloseChangesMerge(t *testing.T) {
	oldContent := "a\nb\nc\nd\ne\nf\n"
	newContent := "A\nb\nc\nd\ne\nF\n"

	d := NewEngine(DefaultContext).ComputeDiff("f", "f", oldContent, newContent)
	if len(d.Hunks) != 1 {
		t.Fatalf("Expected changes 4 lines apart to share a hunk, got %d", len(d.Hunks))
	}
}

func TestComputeDiff_HunkCounts(t *testing.T) {
	d := NewEngine(DefaultContext).ComputeDiff("f", "f", "line1\nline2\nline3\n", "line1\nNEW\nline3\n")

	if len(d.Hunks) != 1 {
		t.Fatalf("Expected 1 hunk, got %d", len(d.Hunks))
	}
	h := d.Hunks[0]
	if h.OldStart != 1 || h.OldCount != 3 || h.NewStart != 1 || h.NewCount != 3 {
		t.Errorf("hunk header = -%d,%d +%d,%d, want -1,3 +1,3", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	}
}

func TestComputeDiff_Caching(t *testing.T) {
	oldContent := "line1\nline2\nline3\n"
	newContent := "line1\nline2\nline3\nline4\n"

	e := NewEngine(DefaultContext)
	d1 := e.ComputeDiff("old.txt", "new.txt", oldContent, newContent)
	d2 := e.ComputeDiff("old2.txt", "new2.txt", oldContent, newContent)

	if len(d1.Hunks) != len(d2.Hunks) {
		t.Errorf("Cache should preserve hunk count: %d vs %d", len(d1.Hunks), len(d2.Hunks))
	}
	if d2.OldPath != "old2.txt" || d2.NewPath != "new2.txt" {
		t.Error("Cached diff should have updated paths")
	}

	e.ClearCache()
	if d3 := e.ComputeDiff("old.txt", "new.txt", oldContent, newContent); len(d3.Hunks) != len(d1.Hunks) {
		t.Error("Cache clearing should not affect diff computation")
	}
}

func TestUnified(t *testing.T) {
	d := NewEngine(1).ComputeDiff("src/App.tsx", "src/App.tsx",
		"import React from 'react';\nconst a = 1;\nexport default a;\n",
		"import React, { useState } from 'react';\nconst a = 1;\nexport default a;\n")

	got := Unified(d)
	want := strings.Join([]string{
		"--- a/src/App.tsx",
		"+++ b/src/App.tsx",
		"@@ -1,2 +1,2 @@",
		"-import React from 'react';",
		"+import React, { useState } from 'react';",
		" const a = 1;",
		"",
	}, "\n")
	if got != want {
		t.Errorf("Unified mismatch:\n got:\n%s\nwant:\n%s", got, want)
	}
}

func TestUnified_NewFile(t *testing.T) {
	d := NewEngine(DefaultContext).ComputeDiff("", "styles.css", "", ".a {}\n")
	d.OldPath = "styles.css"
	got := Unified(d)
	if !strings.HasPrefix(got, "--- /dev/null\n+++ b/styles.css\n@@ -0,0 +1 @@\n+.a {}\n") {
		t.Errorf("unexpected new-file diff:\n%s", got)
	}
}

func TestUnifiedStyled(t *testing.T) {
	d := NewEngine(DefaultContext).ComputeDiff("f", "f", "a\n", "b\n")
	got := UnifiedStyled(d, func(lt LineType, header bool, line string) string {
		switch {
		case header:
			return "H:" + line
		case lt == LineAdded:
			return "G:" + line
		case lt == LineRemoved:
			return "R:" + line
		}
		return line
	})
	for _, want := range []string{"H:--- a/f", "H:@@ -1 +1 @@", "R:-a", "G:+b"} {
		if !strings.Contains(got, want) {
			t.Errorf("styled output missing %q:\n%s", want, got)
		}
	}
}

func TestUnified_Empty(t *testing.T) {
	if got := Unified(nil); got != "" {
		t.Errorf("nil diff should render empty, got %q", got)
	}
}

func BenchmarkComputeDiff_Large(b *testing.B) {
	var lines []string
	for i := 0; i < 1000; i++ {
		lines = append(lines, "line content here "+string(rune('a'+i%26)))
	}
	oldContent := strings.Join(lines, "\n")
	lines[500] = "CHANGED"
	newContent := strings.Join(lines, "\n")

	e := NewEngine(DefaultContext)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.ClearCache()
		e.ComputeDiff("old.txt", "new.txt", oldContent, newContent)
	}
}
