package syntax

import (
	"errors"
	"fmt"
)

// ErrUnbalanced is wrapped by every BalanceError.
var ErrUnbalanced = errors.New("unbalanced delimiters")

// BalanceError reports the first delimiter fault.
type BalanceError struct {
	Line     int
	Found    byte // 0 at end of input
	Expected byte // 0 when nothing was open
}

func (e *BalanceError) Error() string {
	switch {
	case e.Found == 0:
		return fmt.Sprintf("line %d: unclosed %q", e.Line, opener(e.Expected))
	case e.Expected == 0:
		return fmt.Sprintf("line %d: unexpected %q", e.Line, e.Found)
	default:
		return fmt.Sprintf("line %d: found %q, expected %q", e.Line, e.Found, e.Expected)
	}
}

func (e *BalanceError) Unwrap() error { return ErrUnbalanced }

var pairs = map[byte]byte{'(': ')', '[': ']', '{': '}'}

func opener(closer byte) byte {
	for o, c := range pairs {
		if c == closer {
			return o
		}
	}
	return closer
}

type frame struct {
	closer byte
	line   int
	// template marks a `${` substitution; its closing brace resumes the template literal.
	template bool
}

// CheckBalance scans JavaScript/TypeScript/CSS-like source and verifies
// that (), [] and {} nest correctly. String literals, template literals and
// comments are skipped. Regex literals are not recognised.
func CheckBalance(src []byte) error {
	var stack []frame
	line := 1
	n := len(src)

	// scanTemplate consumes a template literal body starting at i and returns
	// the index after the closing backtick, or the index of a `${` opener.
	scanTemplate := func(i int) (int, bool) {
		for i < n {
			switch src[i] {
			case '\\':
				i++
			case '\n':
				line++
			case '`':
				return i + 1, false
			case '$':
				if i+1 < n && src[i+1] == '{' {
					return i + 2, true
				}
			}
			i++
		}
		return i, false
	}

	i := 0
	for i < n {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i < n && !(src[i] == '*' && i+1 < n && src[i+1] == '/') {
				if src[i] == '\n' {
					line++
				}
				i++
			}
			i += 2
		case c == '"' || c == '\'':
			i++
			for i < n && src[i] != c && src[i] != '\n' {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i < n && src[i] == c {
				i++
			}
		case c == '`':
			next, sub := scanTemplate(i + 1)
			if sub {
				stack = append(stack, frame{closer: '}', line: line, template: true})
			}
			i = next
		case c == '(' || c == '[' || c == '{':
			stack = append(stack, frame{closer: pairs[c], line: line})
			i++
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 {
				return &BalanceError{Line: line, Found: c}
			}
			top := stack[len(stack)-1]
			if top.closer != c {
				return &BalanceError{Line: line, Found: c, Expected: top.closer}
			}
			stack = stack[:len(stack)-1]
			i++
			if top.template {
				next, sub := scanTemplate(i)
				if sub {
					stack = append(stack, frame{closer: '}', line: line, template: true})
				}
				i = next
			}
		default:
			i++
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return &BalanceError{Line: top.line, Expected: top.closer}
	}
	return nil
}
