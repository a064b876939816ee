package patch

import (
	"fmt"
	"strings"

	"patchkit/internal/recipe"
)

// applyEdit runs one edit against content and returns the new content
// with its outcome. content is returned unchanged for every outcome other
// than OutcomeApplied.
func applyEdit(content string, e *recipe.Edit) (string, EditOutcome) {
	out := EditOutcome{Kind: "edit"}

	if e.AppliedMarker != "" && strings.Contains(content, e.AppliedMarker) {
		out.Outcome = OutcomeAlreadyApplied
		out.Detail = "applied marker present"
		return content, out
	}
	if e.Regex {
		return applyRegexEdit(content, e, out)
	}

	n := strings.Count(content, e.Find)
	out.Occurrences = n

	if n == 0 {
		switch {
		case e.Replace == "":
			// A deletion leaves nothing to look for but the pattern's absence.
			out.Outcome = OutcomeAlreadyApplied
			out.Detail = "pattern already removed"
			return content, out
		case strings.Contains(content, e.Replace):
			out.Outcome = OutcomeAlreadyApplied
			out.Detail = "replacement already present"
			return content, out
		}
		return content, missing(e, out)
	}

	// A replacement that contains its own search text would be inserted
	// again on every run.
	if strings.Contains(e.Replace, e.Find) && strings.Contains(content, e.Replace) {
		out.Outcome = OutcomeAlreadyApplied
		out.Detail = "replacement already present"
		return content, out
	}

	if reason := ambiguity(e, n); reason != "" {
		out.Outcome = OutcomeAmbiguous
		out.Detail = reason
		return content, out
	}

	if e.All || e.Count > 0 {
		content = strings.ReplaceAll(content, e.Find, e.Replace)
	} else {
		content = strings.Replace(content, e.Find, e.Replace, 1)
	}
	out.Outcome = OutcomeApplied
	return content, out
}

func applyRegexEdit(content string, e *recipe.Edit, out EditOutcome) (string, EditOutcome) {
	re, err := e.Regexp()
	if err != nil {
		out.Outcome = OutcomeError
		out.Detail = err.Error()
		return content, out
	}

	matches := re.FindAllStringSubmatchIndex(content, -1)
	n := len(matches)
	out.Occurrences = n
	if n == 0 {
		return content, missing(e, out)
	}
	if reason := ambiguity(e, n); reason != "" {
		out.Outcome = OutcomeAmbiguous
		out.Detail = reason
		return content, out
	}

	var next string
	if e.All || e.Count > 0 {
		next = re.ReplaceAllString(content, e.Replace)
	} else {
		m := matches[0]
		expanded := re.ExpandString(nil, e.Replace, content, m)
		next = content[:m[0]] + string(expanded) + content[m[1]:]
	}

	if next == content {
		out.Outcome = OutcomeAlreadyApplied
		out.Detail = "replacement equals match"
		return content, out
	}
	out.Outcome = OutcomeApplied
	return next, out
}

func missing(e *recipe.Edit, out EditOutcome) EditOutcome {
	if e.Optional {
		out.Outcome = OutcomeSkipped
		out.Detail = "optional pattern not found"
		return out
	}
	out.Outcome = OutcomeMissing
	out.Detail = "pattern not found"
	return out
}

// ambiguity returns a non-empty reason when n occurrences violate the
// edit's count constraints. Without count or all, exactly one match is required.
func ambiguity(e *recipe.Edit, n int) string {
	switch {
	case e.Count > 0 && n != e.Count:
		return fmt.Sprintf("expected %d occurrence(s), found %d", e.Count, n)
	case e.Count == 0 && !e.All && n > 1:
		return fmt.Sprintf("pattern matches %d times; set all or count", n)
	}
	return ""
}
