package patch

import (
	"errors"
	"fmt"
	"time"

	"patchkit/internal/diff"
)

// Outcome classifies one operation against one file.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already-applied"
	OutcomeMissing        Outcome = "missing"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeAmbiguous      Outcome = "ambiguous"
	OutcomeConflict       Outcome = "conflict"
	OutcomeCheckFailed    Outcome = "check-failed"
	OutcomeError          Outcome = "error"
)

// Failed reports whether the outcome counts against the recipe.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeMissing, OutcomeAmbiguous, OutcomeConflict, OutcomeCheckFailed, OutcomeError:
		return true
	}
	return false
}

// Err maps a failing outcome to its sentinel error, or nil.
func (o Outcome) Err() error {
	switch o {
	case OutcomeMissing:
		return ErrPatternMissing
	case OutcomeAmbiguous:
		return ErrAmbiguousMatch
	case OutcomeConflict:
		return ErrConflict
	case OutcomeCheckFailed:
		return ErrCheckFailed
	}
	return nil
}

// Status summarises a recipe run.
type Status string

const (
	StatusOK      Status = "ok"      // something applied, no failures
	StatusNoop    Status = "noop"    // everything was already applied
	StatusPartial Status = "partial" // on_missing: continue with failures
	StatusFailed  Status = "failed"
)

// EditOutcome is the result of one edit or extract against one target.
type EditOutcome struct {
	Kind        string // "edit" or "extract"
	Index       int
	Label       string
	Outcome     Outcome
	Occurrences int
	Detail      string
}

// CheckResult is the result of one post-edit check.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
	// Forced marks a failure that was overridden with --force.
	Forced bool
}

// FileReport describes everything that happened to one file.
type FileReport struct {
	Path     string // workspace-relative, slash separated
	Outcomes []EditOutcome
	Checks   []CheckResult
	Restored bool // content started from git HEAD
	Created  bool // file did not exist before the run
	Changed  bool
	Written  bool
	// BackupPath is set once the original has been copied aside.
	BackupPath string
	Diff       *diff.FileDiff
	Err        error
}

// Failed reports whether anything about the file failed.
func (f *FileReport) Failed() bool {
	if f.Err != nil || f.checksFailed() {
		return true
	}
	for _, o := range f.Outcomes {
		if o.Outcome.Failed() {
			return true
		}
	}
	return false
}

// Writable reports whether the file's buffer may be committed in
// on_missing: continue mode. Check failures and errors block the write;
// missing edits do not.
func (f *FileReport) Writable() bool {
	return f.Changed && f.Err == nil && !f.checksFailed()
}

func (f *FileReport) checksFailed() bool {
	for _, c := range f.Checks {
		if !c.Passed && !c.Forced {
			return true
		}
	}
	return false
}

// OpReport is the result of a create or remove operation.
type OpReport struct {
	Op         string // "create" or "remove"
	Path       string
	Outcome    Outcome
	Written    bool
	BackupPath string
	Detail     string
	Diff       *diff.FileDiff
	Err        error
}

// Report is the result of planning or applying one recipe.
type Report struct {
	RunID    string
	Recipe   string
	DryRun   bool
	Status   Status
	Files    []*FileReport
	Ops      []*OpReport
	Duration time.Duration
}

// Failed reports whether the recipe should make the process exit non-zero.
// Partial runs count as failures: something the recipe asked for is not in place.
func (r *Report) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusPartial
}

// Counts tallies outcomes across files and operations.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, f := range r.Files {
		for _, o := range f.Outcomes {
			counts[o.Outcome]++
		}
		if f.checksFailed() {
			counts[OutcomeCheckFailed]++
		}
		if f.Err != nil {
			counts[OutcomeError]++
		}
	}
	for _, op := range r.Ops {
		counts[op.Outcome]++
	}
	return counts
}

// Changed reports whether the recipe changed (or would change) anything.
func (r *Report) Changed() bool {
	for _, f := range r.Files {
		if f.Changed {
			return true
		}
	}
	for _, op := range r.Ops {
		if op.Outcome == OutcomeApplied {
			return true
		}
	}
	return false
}

// File returns the report for a workspace-relative path, or nil.
func (r *Report) File(rel string) *FileReport {
	for _, f := range r.Files {
		if f.Path == rel {
			return f
		}
	}
	return nil
}

func (r *Report) failedAny() bool {
	for _, f := range r.Files {
		if f.Failed() {
			return true
		}
	}
	for _, op := range r.Ops {
		if op.Outcome.Failed() || op.Err != nil {
			return true
		}
	}
	return false
}

// Err joins every failure in the report into one error, or returns nil.
// Each part wraps the matching sentinel, so errors.Is works on the result.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Files {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
		for _, o := range f.Outcomes {
			if o.Outcome == OutcomeError {
				errs = append(errs, fmt.Errorf("%s: %s: %s", f.Path, o.Label, o.Detail))
			} else if err := o.Outcome.Err(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %s: %w", f.Path, o.Label, err))
			}
		}
		for _, c := range f.Checks {
			if !c.Passed && !c.Forced {
				errs = append(errs, fmt.Errorf("%s: %s: %w: %s", f.Path, c.Name, ErrCheckFailed, c.Detail))
			}
		}
	}
	for _, op := range r.Ops {
		switch {
		case op.Err != nil:
			errs = append(errs, op.Err)
		case op.Outcome.Err() != nil:
			errs = append(errs, fmt.Errorf("%s %s: %w", op.Op, op.Path, op.Outcome.Err()))
		}
	}
	return errors.Join(errs...)
}
