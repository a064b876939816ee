// Package patch applies recipes to a workspace. Every operation is first
// evaluated against in-memory buffers (Plan); Apply then commits the
// changed buffers with backups and atomic writes, or nothing at all when
// the recipe failed.
package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"patchkit/internal/diff"
	"patchkit/internal/fileops"
	"patchkit/internal/journal"
	"patchkit/internal/logging"
	"patchkit/internal/recipe"
	"patchkit/internal/syntax"
)

var (
	// ErrPatternMissing marks an edit whose pattern was not found.
	ErrPatternMissing = errors.New("pattern not found")
	// ErrAmbiguousMatch marks an edit whose pattern matched the wrong number of times.
	ErrAmbiguousMatch = errors.New("ambiguous match")
	// ErrCheckFailed marks a modified file that failed a post-edit check.
	ErrCheckFailed = errors.New("check failed")
	// ErrConflict marks a create over an existing, different file.
	ErrConflict = errors.New("file exists with different content")
	// ErrOutsideWorkspace is returned for paths that resolve outside the workspace.
	ErrOutsideWorkspace = errors.New("path outside workspace")
	// ErrTargetNotFound marks a literal target that does not exist.
	ErrTargetNotFound = errors.New("target not found")
	// ErrNoRestorer is returned when restore_first is requested outside a git repository.
	ErrNoRestorer = errors.New("restore from HEAD unavailable: not a git repository")
)

// Journal records committed changes.
type Journal interface {
	RecordChange(ctx context.Context, c journal.Change) error
}

// Restorer provides the committed content of a workspace file.
type Restorer interface {
	HeadContent(path string) ([]byte, error)
}

// Validator parses a buffer for syntax errors.
type Validator interface {
	Supports(path string) bool
	Validate(ctx context.Context, path string, content []byte) error
}

// Options configures an Engine.
type Options struct {
	Workspace string
	// RunID groups every recipe of one invocation; empty generates one.
	RunID         string
	DryRun        bool
	Backup        bool
	Force         bool
	RestoreFirst  bool
	CheckSyntax   bool
	CheckBalanced bool
	MaxFileBytes  int64
	DiffContext   int
	// Exclude lists directories whose files glob targets never match.
	// The backup store's directory is always excluded.
	Exclude []string
}

// Deps are the engine's collaborators. Nil fields disable the feature,
// except Editor and Validator which get defaults.
type Deps struct {
	Editor    *fileops.Editor
	Backups   *fileops.BackupStore
	Journal   Journal
	Restorer  Restorer
	Validator Validator
}

// Engine plans and applies recipes against one workspace.
type Engine struct {
	opts      Options
	workspace string
	editor    *fileops.Editor
	backups   *fileops.BackupStore
	journal   Journal
	restorer  Restorer
	validator Validator
	differ    *diff.Engine
	exclude   []string
	log       *logging.RunLogger
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewEngine creates an engine rooted at opts.Workspace.
func NewEngine(opts Options, deps Deps) (*Engine, error) {
	if opts.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}
	ws, err := filepath.Abs(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	if deps.Editor == nil {
		deps.Editor = fileops.NewEditor(opts.MaxFileBytes)
	}
	if deps.Validator == nil {
		deps.Validator = syntax.NewValidator()
	}
	exclude := append([]string(nil), opts.Exclude...)
	if deps.Backups != nil {
		exclude = append(exclude, deps.Backups.Dir())
	}
	lines := opts.DiffContext
	if lines <= 0 {
		lines = diff.DefaultContext
	}

	return &Engine{
		opts:      opts,
		workspace: ws,
		editor:    deps.Editor,
		backups:   deps.Backups,
		journal:   deps.Journal,
		restorer:  deps.Restorer,
		validator: deps.Validator,
		differ:    diff.NewEngine(lines),
		exclude:   exclude,
		log:       logging.WithRunID(logging.CategoryPatch, opts.RunID),
	}, nil
}

// RunID returns the identifier shared by every recipe this engine runs.
func (e *Engine) RunID() string { return e.opts.RunID }

// Workspace returns the absolute workspace root.
func (e *Engine) Workspace() string { return e.workspace }

// Rel converts an absolute path to a slash-separated workspace path.
func (e *Engine) Rel(abs string) string {
	rel, err := filepath.Rel(e.workspace, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// Abs resolves a workspace-relative (or absolute) path and confines it to the workspace.
func (e *Engine) Abs(p string) (string, error) {
	abs := filepath.FromSlash(p)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.workspace, abs)
	}
	abs = filepath.Clean(abs)
	if !recipe.Within(e.workspace, abs) {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideWorkspace)
	}
	return abs, nil
}

// Plan evaluates the recipe in memory. It never writes.
func (e *Engine) Plan(ctx context.Context, r *recipe.Recipe) (*Report, error) {
	p, err := e.plan(ctx, r)
	if err != nil {
		return nil, err
	}
	p.report.DryRun = true
	return p.report, nil
}

// Apply plans the recipe and commits it when its status allows. In dry-run
// mode Apply is Plan.
func (e *Engine) Apply(ctx context.Context, r *recipe.Recipe) (*Report, error) {
	if e.opts.DryRun {
		return e.Plan(ctx, r)
	}
	p, err := e.plan(ctx, r)
	if err != nil {
		return nil, err
	}
	rep := p.report

	switch rep.Status {
	case StatusFailed:
		e.log.Warn("Recipe %s failed; nothing written", r.Name)
		return rep, nil
	case StatusNoop:
		e.log.Info("Recipe %s already applied", r.Name)
		return rep, nil
	}

	start := time.Now()
	if err := e.commit(ctx, p); err != nil {
		rep.Status = StatusFailed
		rep.Duration += time.Since(start)
		return rep, err
	}
	rep.Duration += time.Since(start)
	e.log.Info("Recipe %s %s in %v", r.Name, rep.Status, rep.Duration)
	return rep, nil
}

// plan holds the in-memory state of one recipe evaluation.
type plan struct {
	recipe  *recipe.Recipe
	report  *Report
	buffers map[string]*buffer
	order   []*buffer
	ops     []*pendingOp
}

// buffer is one file's original bytes and its patched content.
type buffer struct {
	abs     string
	rel     string
	target  bool
	exists  bool
	disk    []byte
	mode    fs.FileMode
	hash    string
	content string
	report  *FileReport
}

func (b *buffer) changed() bool {
	if !b.exists {
		return b.content != ""
	}
	return b.content != string(b.disk)
}

// buffer returns the buffer for abs, reading it on first use.
func (e *Engine) buffer(p *plan, abs string) *buffer {
	if b, ok := p.buffers[abs]; ok {
		return b
	}
	rel := e.Rel(abs)
	b := &buffer{abs: abs, rel: rel, mode: 0644, report: &FileReport{Path: rel}}
	p.buffers[abs] = b
	p.order = append(p.order, b)
	p.report.Files = append(p.report.Files, b.report)

	f, err := e.editor.ReadFile(abs)
	switch {
	case err == nil:
		b.exists = true
		b.disk = f.Content
		b.mode = f.Mode
		b.hash = f.Hash
		b.content = string(f.Content)
	case errors.Is(err, fs.ErrNotExist):
	default:
		b.report.Err = err
	}
	return b
}

func (e *Engine) plan(ctx context.Context, r *recipe.Recipe) (*plan, error) {
	start := time.Now()
	targets, err := r.ResolveTargets(e.workspace, e.exclude...)
	if err != nil {
		return nil, err
	}

	p := &plan{
		recipe:  r,
		report:  &Report{RunID: e.opts.RunID, Recipe: r.Name},
		buffers: make(map[string]*buffer),
	}
	restoreFirst := r.RestoreFirst || e.opts.RestoreFirst

	for _, abs := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := e.buffer(p, abs)
		b.target = true
		if b.report.Err != nil {
			continue
		}
		if restoreFirst {
			if err := e.restoreBuffer(b); err != nil {
				b.report.Err = err
				continue
			}
		}
		if !b.exists && !b.report.Restored {
			b.report.Err = fmt.Errorf("%s: %w", b.rel, ErrTargetNotFound)
			continue
		}

		for i := range r.Edits {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ed := &r.Edits[i]
			next, out := applyEdit(b.content, ed)
			out.Index = i
			out.Label = ed.Label(i)
			b.content = next
			b.report.Outcomes = append(b.report.Outcomes, out)
			e.log.Debug("%s: %s: %s (%d occurrence(s))", b.rel, out.Label, out.Outcome, out.Occurrences)
		}
		for i := range r.Extract {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out := e.applyExtract(p, b, &r.Extract[i], i)
			b.report.Outcomes = append(b.report.Outcomes, out)
			e.log.Debug("%s: %s: %s", b.rel, out.Label, out.Outcome)
		}
	}

	for i := range r.Create {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.planCreate(p, &r.Create[i])
	}
	for i := range r.Remove {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.planRemove(p, &r.Remove[i])
	}

	for _, b := range p.order {
		f := b.report
		if f.Err != nil || !b.changed() {
			continue
		}
		f.Changed = true
		f.Created = !b.exists
		d := *e.differ.ComputeDiff(b.rel, b.rel, string(b.disk), b.content)
		d.IsNew = !b.exists
		f.Diff = &d
		f.Checks = e.runChecks(ctx, b, r.Checks)
	}

	// Sibling buffers that an extract looked at but never touched are noise.
	files := p.report.Files[:0]
	for _, b := range p.order {
		if b.target || b.report.Changed || b.report.Err != nil {
			files = append(files, b.report)
		}
	}
	p.report.Files = files

	p.report.Status = status(p.report, r.Mode())
	p.report.Duration = time.Since(start)
	logging.Patch("Planned %s: %s (%d file(s), %d op(s))", r.Name, p.report.Status, len(p.report.Files), len(p.report.Ops))
	return p, nil
}

// restoreBuffer replaces the buffer's starting content with HEAD. The disk
// bytes stay as the original so the diff and backup reflect what is on disk.
func (e *Engine) restoreBuffer(b *buffer) error {
	if e.restorer == nil {
		return ErrNoRestorer
	}
	head, err := e.restorer.HeadContent(b.abs)
	if err != nil {
		return fmt.Errorf("restore %s: %w", b.rel, err)
	}
	b.content = string(head)
	b.report.Restored = true
	logging.VCSDebug("Starting %s from HEAD (%d bytes)", b.rel, len(head))
	return nil
}

func status(r *Report, mode recipe.OnMissing) Status {
	failed := r.failedAny()
	changed := r.Changed()
	switch {
	case !failed && changed:
		return StatusOK
	case !failed:
		return StatusNoop
	case mode == recipe.OnMissingContinue && writableAny(r):
		return StatusPartial
	default:
		return StatusFailed
	}
}

func writableAny(r *Report) bool {
	for _, f := range r.Files {
		if f.Writable() {
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
