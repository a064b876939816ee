package patch

import (
	"context"
	"fmt"
	"strings"

	"patchkit/internal/recipe"
	"patchkit/internal/syntax"
)

// runChecks verifies a modified buffer. Expect and forbid apply to recipe
// targets only; balance and syntax apply to every modified file.
func (e *Engine) runChecks(ctx context.Context, b *buffer, c recipe.Checks) []CheckResult {
	var results []CheckResult

	if b.target {
		for _, s := range c.Expect {
			res := CheckResult{Name: fmt.Sprintf("expect %q", s), Passed: strings.Contains(b.content, s)}
			if !res.Passed {
				res.Detail = "expected text not present"
			}
			results = append(results, res)
		}
		for _, s := range c.Forbid {
			res := CheckResult{Name: fmt.Sprintf("forbid %q", s), Passed: !strings.Contains(b.content, s)}
			if !res.Passed {
				res.Detail = fmt.Sprintf("forbidden text present %d time(s)", strings.Count(b.content, s))
			}
			results = append(results, res)
		}
	}

	supported := e.validator != nil && e.validator.Supports(b.abs)

	// The global switch only covers languages we can parse; a recipe may
	// ask for balance on anything.
	if c.Balanced || (e.opts.CheckBalanced && supported) {
		res := CheckResult{Name: "balanced", Passed: true}
		if err := syntax.CheckBalance([]byte(b.content)); err != nil {
			res.Passed = false
			res.Detail = err.Error()
		}
		results = append(results, res)
	}

	if (c.Syntax || e.opts.CheckSyntax) && supported {
		res := CheckResult{Name: "syntax", Passed: true}
		if err := e.validator.Validate(ctx, b.rel, []byte(b.content)); err != nil {
			res.Passed = false
			res.Detail = err.Error()
		}
		results = append(results, res)
	}

	for i := range results {
		if !results[i].Passed {
			if e.opts.Force {
				results[i].Forced = true
				e.log.Warn("%s: check %s failed (forced): %s", b.rel, results[i].Name, results[i].Detail)
			} else {
				e.log.Warn("%s: check %s failed: %s", b.rel, results[i].Name, results[i].Detail)
			}
		}
	}
	return results
}
