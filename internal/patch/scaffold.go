package patch

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"patchkit/internal/fileops"
	"patchkit/internal/recipe"
)

// pendingOp is a planned create or remove.
type pendingOp struct {
	report  *OpReport
	abs     string
	rel     string
	remove  bool
	content []byte
	existed bool
	isDir   bool
	disk    []byte
	mode    fs.FileMode
	hash    string
}

func (e *Engine) planCreate(p *plan, c *recipe.Create) {
	op := &pendingOp{report: &OpReport{Op: "create", Path: c.Path}, content: []byte(c.Content), mode: 0644}
	p.ops = append(p.ops, op)
	p.report.Ops = append(p.report.Ops, op.report)

	abs, err := e.Abs(c.Path)
	if err != nil {
		op.report.Outcome = OutcomeError
		op.report.Err = err
		return
	}
	op.abs = abs
	op.rel = e.Rel(abs)
	op.report.Path = op.rel

	info, err := os.Lstat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		op.report.Outcome = OutcomeApplied
		op.report.Diff = e.differ.ComputeDiff("", op.rel, "", c.Content)
		return
	case err != nil:
		op.report.Outcome = OutcomeError
		op.report.Err = err
		return
	case !info.Mode().IsRegular():
		op.report.Outcome = OutcomeConflict
		op.report.Detail = "exists and is not a regular file"
		return
	}

	f, err := e.editor.ReadFile(abs)
	if err != nil {
		op.report.Outcome = OutcomeError
		op.report.Err = err
		return
	}
	op.existed = true
	op.disk = f.Content
	op.mode = f.Mode
	op.hash = f.Hash

	switch {
	case bytes.Equal(f.Content, op.content):
		op.report.Outcome = OutcomeAlreadyApplied
		op.report.Detail = "identical file exists"
	case c.Overwrite:
		op.report.Outcome = OutcomeApplied
		op.report.Detail = "overwrite"
		op.report.Diff = e.differ.ComputeDiff(op.rel, op.rel, string(f.Content), c.Content)
	default:
		op.report.Outcome = OutcomeConflict
		op.report.Detail = "exists with different content; set overwrite to replace it"
	}
}

func (e *Engine) planRemove(p *plan, rm *recipe.Remove) {
	op := &pendingOp{report: &OpReport{Op: "remove", Path: rm.Path}, remove: true}
	p.ops = append(p.ops, op)
	p.report.Ops = append(p.report.Ops, op.report)

	abs, err := e.Abs(rm.Path)
	if err == nil && abs == e.workspace {
		err = fmt.Errorf("refusing to remove the workspace root: %w", ErrOutsideWorkspace)
	}
	if err != nil {
		op.report.Outcome = OutcomeError
		op.report.Err = err
		return
	}
	op.abs = abs
	op.rel = e.Rel(abs)
	op.report.Path = op.rel

	info, err := os.Lstat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		op.report.Outcome = OutcomeAlreadyApplied
		op.report.Detail = "already absent"
		return
	case err != nil:
		op.report.Outcome = OutcomeError
		op.report.Err = err
		return
	}

	op.existed = true
	op.isDir = info.IsDir()
	op.mode = info.Mode().Perm()
	op.report.Outcome = OutcomeApplied
	if op.isDir {
		op.report.Detail = "directory tree"
		return
	}
	if info.Mode().IsRegular() {
		if data, err := os.ReadFile(abs); err == nil {
			op.disk = data
			op.hash = fileops.Hash(data)
			op.report.Diff = e.differ.ComputeDiff(op.rel, "", string(data), "")
		}
	}
}
