// Package recipe defines patch recipes: declarative, re-runnable
// descriptions of text edits, extractions and file scaffolding applied to
// a workspace.
package recipe

import (
	"fmt"
	"regexp"
)

// OnMissing selects what happens when an edit pattern cannot be found.
type OnMissing string

const (
	// OnMissingAbort fails the recipe and writes nothing.
	OnMissingAbort OnMissing = "abort"
	// OnMissingContinue runs the remaining edits and writes what succeeded.
	OnMissingContinue OnMissing = "continue"
)

// Recipe is one YAML document.
type Recipe struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Fallback is markdown shown to the user when the recipe fails.
	Fallback     string    `yaml:"fallback,omitempty"`
	Targets      []string  `yaml:"targets,omitempty"`
	RestoreFirst bool      `yaml:"restore_first,omitempty"`
	OnMissing    OnMissing `yaml:"on_missing,omitempty"`

	Edits   []Edit    `yaml:"edits,omitempty"`
	Extract []Extract `yaml:"extract,omitempty"`
	Create  []Create  `yaml:"create,omitempty"`
	Remove  []Remove  `yaml:"remove,omitempty"`
	Checks  Checks    `yaml:"checks,omitempty"`

	// Source is the file the recipe was loaded from.
	Source string `yaml:"-"`
}

// Edit is a find/replace applied to every target in order.
type Edit struct {
	Description string `yaml:"description,omitempty"`
	Find        string `yaml:"find"`
	Replace     string `yaml:"replace"`
	Regex       bool   `yaml:"regex,omitempty"`
	All         bool   `yaml:"all,omitempty"`
	// Count is the exact number of occurrences expected; 0 means one
	// occurrence unless All is set.
	Count         int    `yaml:"count,omitempty"`
	AppliedMarker string `yaml:"applied_marker,omitempty"`
	Optional      bool   `yaml:"optional,omitempty"`

	compiled *regexp.Regexp
}

// Regexp returns Find compiled as a regular expression. Validate compiles
// it up front so later calls only read the cached value.
func (e *Edit) Regexp() (*regexp.Regexp, error) {
	if e.compiled != nil {
		return e.compiled, nil
	}
	re, err := regexp.Compile(e.Find)
	if err != nil {
		return nil, err
	}
	e.compiled = re
	return re, nil
}

// Label names the edit in output.
func (e *Edit) Label(i int) string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("edit #%d", i+1)
}

// Extract moves the text between two markers into a sibling file.
type Extract struct {
	Description string `yaml:"description,omitempty"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	// To is relative to the target's directory.
	To     string `yaml:"to"`
	Import string `yaml:"import,omitempty"`
}

// Label names the extraction in output.
func (x *Extract) Label(i int) string {
	if x.Description != "" {
		return x.Description
	}
	return fmt.Sprintf("extract #%d -> %s", i+1, x.To)
}

// Create writes a new file relative to the workspace.
type Create struct {
	Path      string `yaml:"path"`
	Content   string `yaml:"content"`
	Overwrite bool   `yaml:"overwrite,omitempty"`
}

// Remove deletes a file or directory tree relative to the workspace.
type Remove struct {
	Path string `yaml:"path"`
}

// Checks are verified on every modified target before it is written.
type Checks struct {
	Expect   []string `yaml:"expect,omitempty"`
	Forbid   []string `yaml:"forbid,omitempty"`
	Balanced bool     `yaml:"balanced,omitempty"`
	Syntax   bool     `yaml:"syntax,omitempty"`
}

// Empty reports whether no check is configured.
func (c Checks) Empty() bool {
	return len(c.Expect) == 0 && len(c.Forbid) == 0 && !c.Balanced && !c.Syntax
}

// Mode returns OnMissing with the default applied.
func (r *Recipe) Mode() OnMissing {
	if r.OnMissing == "" {
		return OnMissingAbort
	}
	return r.OnMissing
}

// OpCount is the number of declared operations.
func (r *Recipe) OpCount() int {
	return len(r.Edits) + len(r.Extract) + len(r.Create) + len(r.Remove)
}

func (r *Recipe) isBlank() bool {
	return r.Name == "" && r.Description == "" && len(r.Targets) == 0 && r.OpCount() == 0
}
