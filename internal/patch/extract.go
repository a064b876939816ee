package patch

import (
	"fmt"
	"path/filepath"
	"strings"

	"patchkit/internal/recipe"
)

// applyExtract moves the text between x.Start and x.End out of b into a
// sibling file and adds x.Import to b.
func (e *Engine) applyExtract(p *plan, b *buffer, x *recipe.Extract, i int) EditOutcome {
	out := EditOutcome{Kind: "extract", Index: i, Label: x.Label(i)}

	siblingAbs := filepath.Clean(filepath.Join(filepath.Dir(b.abs), filepath.FromSlash(x.To)))
	if !recipe.Within(e.workspace, siblingAbs) {
		out.Outcome = OutcomeError
		out.Detail = fmt.Sprintf("%s: %v", x.To, ErrOutsideWorkspace)
		return out
	}
	if siblingAbs == b.abs {
		out.Outcome = OutcomeError
		out.Detail = "extract destination is the target itself"
		return out
	}
	sib := e.buffer(p, siblingAbs)
	if sib.report.Err != nil {
		out.Outcome = OutcomeError
		out.Detail = sib.report.Err.Error()
		return out
	}

	content := b.content
	start := strings.Index(content, x.Start)
	end := -1
	if start >= 0 {
		if k := strings.Index(content[start+len(x.Start):], x.End); k >= 0 {
			end = start + len(x.Start) + k
		}
	}

	if start < 0 || end < 0 {
		siblingThere := sib.exists || sib.content != ""
		if siblingThere && (x.Import == "" || strings.Contains(content, x.Import)) {
			out.Outcome = OutcomeAlreadyApplied
			out.Detail = "markers gone, sibling and import present"
			return out
		}
		out.Outcome = OutcomeMissing
		if start < 0 {
			out.Detail = "start marker not found"
		} else {
			out.Detail = "end marker not found"
		}
		return out
	}

	block := trimBlock(content[start+len(x.Start) : end])

	cut := end + len(x.End)
	if (start == 0 || content[start-1] == '\n') && cut < len(content) && content[cut] == '\n' {
		cut++
	}
	content = content[:start] + content[cut:]

	if block != "" && !strings.Contains(sib.content, block) {
		sib.content = appendBlock(sib.content, block)
	}
	if x.Import != "" && !strings.Contains(content, x.Import) {
		content = insertImport(content, x.Import)
	}
	b.content = content

	out.Outcome = OutcomeApplied
	out.Occurrences = 1
	out.Detail = fmt.Sprintf("%d byte(s) -> %s", len(block), sib.rel)
	return out
}

// trimBlock drops one leading newline and the trailing newline plus
// indentation that precede the end marker.
func trimBlock(s string) string {
	s = strings.TrimPrefix(s, "\r\n")
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimRight(s, " \t")
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s
}

func appendBlock(existing, block string) string {
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	if existing == "" {
		return block
	}
	if !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}
	return existing + "\n" + block
}

// insertImport places line after the last import statement (ES or CSS
// @import) at the top of content, or at the very top when there is none.
func insertImport(content, line string) string {
	lines := strings.SplitAfter(content, "\n")
	insertAt := 0

scan:
	for i := 0; i < len(lines); i++ {
		t := strings.TrimSpace(lines[i])
		switch {
		case t == "", isComment(t), isDirective(t):
			continue
		case t == "import" || strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "import{") || strings.HasPrefix(t, "@import "):
			j := i
			for !importEnds(strings.TrimSpace(lines[j])) && j+1 < len(lines) {
				j++
			}
			insertAt = j + 1
			i = j
		default:
			break scan
		}
	}

	if insertAt == 0 {
		return line + "\n" + content
	}
	var sb strings.Builder
	for _, l := range lines[:insertAt] {
		sb.WriteString(l)
	}
	if !strings.HasSuffix(lines[insertAt-1], "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(line + "\n")
	for _, l := range lines[insertAt:] {
		sb.WriteString(l)
	}
	return sb.String()
}

func importEnds(t string) bool {
	return strings.HasSuffix(t, ";") ||
		strings.Contains(t, " from ") ||
		strings.HasPrefix(t, "}from") ||
		strings.HasPrefix(t, "import '") ||
		strings.HasPrefix(t, `import "`)
}

func isComment(t string) bool {
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/*") || strings.HasPrefix(t, "*")
}

func isDirective(t string) bool {
	return strings.HasPrefix(t, "'use ") || strings.HasPrefix(t, `"use `)
}
