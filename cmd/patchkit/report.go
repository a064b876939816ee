package main

import (
	"fmt"
	"io"
	"strings"

	"patchkit/cmd/patchkit/ui"
	"patchkit/internal/diff"
	"patchkit/internal/patch"
	"patchkit/internal/recipe"
)

// printer writes human-readable run reports.
type printer struct {
	w        io.Writer
	styles   ui.Styles
	showDiff bool
	markdown *ui.MarkdownRenderer
}

func newPrinter(w io.Writer, styles ui.Styles, showDiff bool) *printer {
	return &printer{
		w:        w,
		styles:   styles,
		showDiff: showDiff,
		markdown: ui.NewMarkdownRenderer(80, styles.Plain),
	}
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

// marker returns the emoji and label for an outcome.
func (p *printer) marker(o patch.Outcome) string {
	s := p.styles
	switch o {
	case patch.OutcomeApplied:
		return s.OK.Render("✅ applied")
	case patch.OutcomeAlreadyApplied:
		return s.Muted.Render("⏭️ already applied")
	case patch.OutcomeMissing:
		return s.Fail.Render("❌ missing")
	case patch.OutcomeAmbiguous:
		return s.Warn.Render("⚠️ ambiguous")
	case patch.OutcomeSkipped:
		return s.Muted.Render("➖ skipped")
	case patch.OutcomeConflict:
		return s.Fail.Render("❌ conflict")
	case patch.OutcomeCheckFailed:
		return s.Fail.Render("❌ check failed")
	default:
		return s.Fail.Render("❌ error")
	}
}

func (p *printer) statusMarker(st patch.Status) string {
	s := p.styles
	switch st {
	case patch.StatusOK:
		return s.OK.Render("✅ ok")
	case patch.StatusNoop:
		return s.Muted.Render("⏭️ noop")
	case patch.StatusPartial:
		return s.Warn.Render("⚠️ partial")
	default:
		return s.Fail.Render("❌ failed")
	}
}

// report prints the full result of one recipe.
func (p *printer) report(r *recipe.Recipe, rep *patch.Report) {
	mode := ""
	if rep.DryRun {
		mode = p.styles.Muted.Render(" [dry-run]")
	}
	p.printf("%s %s%s\n", p.styles.Header.Render("📦 "+r.Name), p.statusMarker(rep.Status), mode)

	for _, f := range rep.Files {
		p.file(f, rep.DryRun)
	}
	for _, op := range rep.Ops {
		line := fmt.Sprintf("  %s %s %s", p.marker(op.Outcome), op.Op, op.Path)
		if op.Detail != "" {
			line += p.styles.Muted.Render(": " + op.Detail)
		}
		p.printf("%s\n", line)
		if op.Err != nil {
			p.printf("    %s\n", p.styles.Fail.Render(op.Err.Error()))
		}
		if op.Written && op.BackupPath != "" {
			p.printf("    💾 backup: %s\n", op.BackupPath)
		}
		if p.showDiff && op.Outcome == patch.OutcomeApplied {
			p.diff(op.Diff)
		}
	}

	if rep.Failed() && strings.TrimSpace(r.Fallback) != "" {
		p.printf("\n%s\n", p.styles.Warn.Render("Manual fallback:"))
		p.printf("%s", p.markdown.Render(r.Fallback))
	}
}

func (p *printer) file(f *patch.FileReport, dryRun bool) {
	p.printf("  📄 %s\n", f.Path)
	if f.Restored {
		p.printf("    %s\n", p.styles.Muted.Render("↩️ started from git HEAD"))
	}
	for _, o := range f.Outcomes {
		line := fmt.Sprintf("    %s: %s", p.marker(o.Outcome), o.Label)
		if o.Occurrences > 1 {
			line += fmt.Sprintf(" (%d occurrences)", o.Occurrences)
		}
		if o.Detail != "" {
			line += p.styles.Muted.Render(" - " + o.Detail)
		}
		p.printf("%s\n", line)
	}
	for _, c := range f.Checks {
		switch {
		case c.Passed:
			p.printf("    %s\n", p.styles.OK.Render("🔍 check "+c.Name+": passed"))
		case c.Forced:
			p.printf("    %s\n", p.styles.Warn.Render("⚠️ check "+c.Name+": failed (forced): "+c.Detail))
		default:
			p.printf("    %s\n", p.styles.Fail.Render("❌ check "+c.Name+": "+c.Detail))
		}
	}
	if f.Err != nil {
		p.printf("    %s\n", p.styles.Fail.Render("❌ "+f.Err.Error()))
	}
	switch {
	case f.Written && f.BackupPath != "":
		p.printf("    💾 written (backup: %s)\n", f.BackupPath)
	case f.Written:
		p.printf("    💾 written\n")
	case f.Changed && dryRun:
		p.printf("    %s\n", p.styles.Muted.Render("📝 would write"))
	case f.Changed:
		p.printf("    %s\n", p.styles.Muted.Render("🚫 not written"))
	}
	if p.showDiff && f.Changed {
		p.diff(f.Diff)
	}
}

func (p *printer) diff(d *diff.FileDiff) {
	if d.Empty() {
		return
	}
	p.printf("%s", diff.UnifiedStyled(d, p.styles.DiffStyler()))
}

// statusLine prints one line per recipe, plus the failing outcomes.
func (p *printer) statusLine(r *recipe.Recipe, rep *patch.Report) {
	files := 0
	for _, f := range rep.Files {
		if f.Changed {
			files++
		}
	}
	line := fmt.Sprintf("%s %s", p.statusMarker(rep.Status), r.Name)
	if files > 0 {
		line += p.styles.Muted.Render(fmt.Sprintf(" (would change %d file(s))", files))
	}
	p.printf("%s\n", line)
	if !rep.Failed() {
		return
	}
	if err := rep.Err(); err != nil {
		for _, part := range strings.Split(err.Error(), "\n") {
			p.printf("    %s\n", p.styles.Fail.Render(part))
		}
	}
}

// summary tallies recipe statuses across a run.
type summary struct {
	counts  map[patch.Status]int
	total   int
	skipped int
}

func newSummary() *summary {
	return &summary{counts: make(map[patch.Status]int)}
}

func (s *summary) add(rep *patch.Report) {
	s.counts[rep.Status]++
	s.total++
}

func (s *summary) failed() bool {
	return s.counts[patch.StatusFailed] > 0 || s.counts[patch.StatusPartial] > 0
}

// status is the value stored for the run in the journal.
func (s *summary) status() string {
	switch {
	case s.counts[patch.StatusFailed] > 0:
		return string(patch.StatusFailed)
	case s.counts[patch.StatusPartial] > 0:
		return string(patch.StatusPartial)
	case s.counts[patch.StatusOK] > 0:
		return string(patch.StatusOK)
	default:
		return string(patch.StatusNoop)
	}
}

func (p *printer) summary(s *summary) {
	p.printf("\n%s %d recipe(s): %d ok, %d noop, %d partial, %d failed",
		p.styles.Header.Render("Summary:"), s.total,
		s.counts[patch.StatusOK], s.counts[patch.StatusNoop],
		s.counts[patch.StatusPartial], s.counts[patch.StatusFailed])
	if s.skipped > 0 {
		p.printf(", %d not run", s.skipped)
	}
	p.printf("\n")
	if !s.failed() && s.skipped == 0 && s.total > 0 {
		p.printf("%s\n", p.styles.OK.Render("🎉 All recipes succeeded"))
	}
}

// restoreResults prints restore and undo results and reports whether any failed.
func (p *printer) restoreResults(results []patch.RestoreResult) bool {
	failed := false
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed = true
			p.printf("%s %s: %v\n", p.styles.Fail.Render("❌"), r.Path, r.Err)
		case r.Action == patch.ActionSkipped:
			line := fmt.Sprintf("%s %s", p.styles.Muted.Render("⏭️ skipped"), r.Path)
			if r.Detail != "" {
				line += p.styles.Muted.Render(" - " + r.Detail)
			}
			p.printf("%s\n", line)
		case r.Action == patch.ActionDeleted:
			p.printf("%s %s\n", p.styles.OK.Render("🗑️ deleted"), r.Path)
		default:
			p.printf("%s %s\n", p.styles.OK.Render("↩️ restored"), r.Path)
		}
	}
	return failed
}
