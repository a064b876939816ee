package diff

import (
	"fmt"
	"strings"
)

// LineStyler decorates one rendered line. The CLI passes lipgloss styles;
// nil keeps the plain text.
type LineStyler func(t LineType, header bool, line string) string

// Unified renders d in unified diff format.
func Unified(d *FileDiff) string {
	return UnifiedStyled(d, nil)
}

// UnifiedStyled renders d in unified diff format, passing each line through style.
func UnifiedStyled(d *FileDiff, style LineStyler) string {
	if d.Empty() {
		return ""
	}
	if style == nil {
		style = func(_ LineType, _ bool, line string) string { return line }
	}

	oldName := "a/" + d.OldPath
	newName := "b/" + d.NewPath
	if d.IsNew {
		oldName = "/dev/null"
	}
	if d.IsDelete {
		newName = "/dev/null"
	}

	var sb strings.Builder
	sb.WriteString(style(LineContext, true, "--- "+oldName) + "\n")
	sb.WriteString(style(LineContext, true, "+++ "+newName) + "\n")

	for _, h := range d.Hunks {
		header := fmt.Sprintf("@@ -%s +%s @@", rangeSpec(h.OldStart, h.OldCount), rangeSpec(h.NewStart, h.NewCount))
		sb.WriteString(style(LineContext, true, header) + "\n")
		for _, l := range h.Lines {
			prefix := " "
			switch l.Type {
			case LineAdded:
				prefix = "+"
			case LineRemoved:
				prefix = "-"
			}
			sb.WriteString(style(l.Type, false, prefix+l.Content) + "\n")
		}
	}
	return sb.String()
}

func rangeSpec(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
