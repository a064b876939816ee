package recipe

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidRecipe is wrapped by every validation failure.
var ErrInvalidRecipe = errors.New("invalid recipe")

func invalid(name, field, format string, args ...interface{}) error {
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Errorf("%w: %s: %s: %s", ErrInvalidRecipe, name, field, fmt.Sprintf(format, args...))
}

// Validate checks the recipe for structural errors and compiles regexes.
func (r *Recipe) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("", "name", "required")
	}
	if r.OpCount() == 0 {
		return invalid(r.Name, "edits", "at least one of edits, extract, create or remove is required")
	}
	switch r.Mode() {
	case OnMissingAbort, OnMissingContinue:
	default:
		return invalid(r.Name, "on_missing", "must be %q or %q, got %q", OnMissingAbort, OnMissingContinue, r.OnMissing)
	}
	if (len(r.Edits) > 0 || len(r.Extract) > 0) && len(r.Targets) == 0 {
		return invalid(r.Name, "targets", "required by edits and extract")
	}
	for i, t := range r.Targets {
		if err := checkRelative(t); err != nil {
			return invalid(r.Name, fmt.Sprintf("targets[%d]", i), "%v", err)
		}
	}

	for i := range r.Edits {
		e := &r.Edits[i]
		field := fmt.Sprintf("edits[%d]", i)
		if e.Find == "" {
			return invalid(r.Name, field+".find", "required")
		}
		if e.Count < 0 {
			return invalid(r.Name, field+".count", "must be >= 0, got %d", e.Count)
		}
		if e.Regex {
			if _, err := e.Regexp(); err != nil {
				return invalid(r.Name, field+".find", "bad regex: %v", err)
			}
		}
	}

	for i, x := range r.Extract {
		field := fmt.Sprintf("extract[%d]", i)
		switch {
		case x.Start == "":
			return invalid(r.Name, field+".start", "required")
		case x.End == "":
			return invalid(r.Name, field+".end", "required")
		case x.To == "":
			return invalid(r.Name, field+".to", "required")
		}
		if err := checkRelative(x.To); err != nil {
			return invalid(r.Name, field+".to", "%v", err)
		}
	}

	for i, c := range r.Create {
		field := fmt.Sprintf("create[%d].path", i)
		if c.Path == "" {
			return invalid(r.Name, field, "required")
		}
		if err := checkRelative(c.Path); err != nil {
			return invalid(r.Name, field, "%v", err)
		}
	}
	for i, rm := range r.Remove {
		field := fmt.Sprintf("remove[%d].path", i)
		if rm.Path == "" {
			return invalid(r.Name, field, "required")
		}
		if err := checkRelative(rm.Path); err != nil {
			return invalid(r.Name, field, "%v", err)
		}
		if filepath.Clean(filepath.FromSlash(rm.Path)) == "." {
			return invalid(r.Name, field, "refusing to remove the workspace root")
		}
	}
	return nil
}

// checkRelative rejects absolute paths and paths that climb out with "..".
func checkRelative(p string) error {
	native := filepath.FromSlash(p)
	if filepath.IsAbs(native) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("%q must be relative to the workspace", p)
	}
	clean := filepath.Clean(native)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%q escapes the workspace", p)
	}
	return nil
}
