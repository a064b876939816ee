package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"patchkit/internal/fileops"
	"patchkit/internal/journal"
)

// RestoreResult describes one file put back by Restore or Undo.
type RestoreResult struct {
	Path   string
	Action string // restored, deleted, skipped
	Detail string
	Err    error
}

// Failed reports whether the file could not be restored.
func (r RestoreResult) Failed() bool { return r.Err != nil }

// Restore actions.
const (
	ActionRestored = "restored"
	ActionDeleted  = "deleted"
	ActionSkipped  = "skipped"
)

// RestoreHead overwrites each path with its content at git HEAD. The
// current bytes are backed up and the change is journaled like any write.
func (e *Engine) RestoreHead(ctx context.Context, paths []string) ([]RestoreResult, error) {
	if e.restorer == nil {
		return nil, ErrNoRestorer
	}
	results := make([]RestoreResult, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := RestoreResult{Path: p}
		abs, err := e.Abs(p)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		res.Path = e.Rel(abs)
		head, err := e.restorer.HeadContent(abs)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		res = e.putBack(ctx, abs, head, 0644, "restore")
		if res.Err == nil && res.Action == ActionSkipped {
			res.Detail = "already matches HEAD"
		}
		results = append(results, res)
	}
	return results, nil
}

// RestoreFromRun puts each path back to the copy backed up by runID.
func (e *Engine) RestoreFromRun(ctx context.Context, runID string, paths []string) ([]RestoreResult, error) {
	if e.backups == nil {
		return nil, fmt.Errorf("backups are disabled: %w", fileops.ErrNoBackup)
	}
	results := make([]RestoreResult, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := RestoreResult{Path: p}
		abs, err := e.Abs(p)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		rel := e.Rel(abs)
		data, mode, err := e.backups.Load(runID, rel)
		if err != nil {
			res.Path = rel
			res.Err = err
			results = append(results, res)
			continue
		}
		results = append(results, e.putBack(ctx, abs, data, mode, "restore"))
	}
	return results, nil
}

// Undo reverses the changes of a run, latest first. A file modified since
// the run is left alone unless the engine was built with Force.
//
// A path written by several recipes of the run is undone once: its earliest
// change holds the pre-run state, its latest the bytes the run left behind.
func (e *Engine) Undo(ctx context.Context, runID string, changes []journal.Change) ([]RestoreResult, error) {
	first := make(map[string]journal.Change)
	last := make(map[string]journal.Change)
	for _, c := range changes {
		if c.Status == journal.StatusUndone {
			continue
		}
		if _, ok := first[c.Path]; !ok {
			first[c.Path] = c
		}
		last[c.Path] = c
	}

	done := make(map[string]bool)
	results := make([]RestoreResult, 0, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		c := changes[i]
		res := RestoreResult{Path: c.Path}
		if c.Status == journal.StatusUndone {
			res.Action = ActionSkipped
			res.Detail = "already undone"
			results = append(results, res)
			continue
		}
		if done[c.Path] {
			res.Action = ActionSkipped
			res.Detail = "undone with a later change"
			results = append(results, res)
			continue
		}
		done[c.Path] = true

		c = first[c.Path]
		c.NewHash = last[c.Path].NewHash
		abs, err := e.Abs(c.Path)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}

		switch {
		case c.Op == ChangeRemove:
			res = e.undoRemove(ctx, runID, c, abs)
		case c.Op == ChangeCreate && c.OldHash == "":
			res = e.undoCreate(ctx, c, abs)
		default:
			res = e.undoWrite(ctx, runID, c, abs)
		}
		results = append(results, res)
	}
	return results, nil
}

// modifiedSince reports whether abs no longer holds the bytes the run wrote.
func (e *Engine) modifiedSince(c journal.Change, abs string) (bool, string, error) {
	f, err := e.editor.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return c.NewHash != "", "", nil
	}
	if err != nil {
		return false, "", err
	}
	return c.NewHash != "" && f.Hash != c.NewHash, f.Hash, nil
}

func (e *Engine) undoWrite(ctx context.Context, runID string, c journal.Change, abs string) RestoreResult {
	res := RestoreResult{Path: c.Path}
	if c.BackupPath == "" || e.backups == nil {
		res.Err = fmt.Errorf("%s: %w", c.Path, fileops.ErrNoBackup)
		return res
	}
	changed, current, err := e.modifiedSince(c, abs)
	if err != nil {
		res.Err = err
		return res
	}
	if c.OldHash != "" && current == c.OldHash {
		res.Action = ActionSkipped
		res.Detail = "already at pre-run content"
		return res
	}
	if changed && !e.opts.Force {
		res.Err = fmt.Errorf("%s was modified after run %s; use --force to overwrite", c.Path, runID)
		return res
	}
	data, mode, err := e.backups.Load(runID, c.Path)
	if err != nil {
		res.Err = err
		return res
	}
	return e.putBack(ctx, abs, data, mode, "undo")
}

func (e *Engine) undoCreate(ctx context.Context, c journal.Change, abs string) RestoreResult {
	res := RestoreResult{Path: c.Path}
	changed, current, err := e.modifiedSince(c, abs)
	if err != nil {
		res.Err = err
		return res
	}
	if current == "" && !fileops.Exists(abs) {
		res.Action = ActionSkipped
		res.Detail = "already gone"
		return res
	}
	if changed && !e.opts.Force {
		res.Err = fmt.Errorf("%s was modified after it was created; use --force to delete", c.Path)
		return res
	}
	if e.backupsOn() {
		if _, err := e.backups.SaveTree(e.opts.RunID, c.Path, abs); err != nil {
			res.Err = err
			return res
		}
	}
	if err := e.editor.Remove(abs); err != nil {
		res.Err = err
		return res
	}
	res.Action = ActionDeleted
	e.record(ctx, "undo", journal.Change{Path: c.Path, Op: ChangeRemove, OldHash: current})
	return res
}

func (e *Engine) undoRemove(ctx context.Context, runID string, c journal.Change, abs string) RestoreResult {
	res := RestoreResult{Path: c.Path}
	if c.BackupPath == "" || e.backups == nil {
		res.Err = fmt.Errorf("%s: %w", c.Path, fileops.ErrNoBackup)
		return res
	}
	if fileops.Exists(abs) && !e.opts.Force {
		res.Err = fmt.Errorf("%s exists again; use --force to overwrite", c.Path)
		return res
	}
	if err := e.backups.RestoreTree(runID, c.Path, abs); err != nil {
		res.Err = err
		return res
	}
	res.Action = ActionRestored
	e.record(ctx, "undo", journal.Change{Path: c.Path, Op: ChangeCreate})
	return res
}

// putBack writes data over abs with a backup, unless it already matches.
func (e *Engine) putBack(ctx context.Context, abs string, data []byte, mode fs.FileMode, source string) RestoreResult {
	rel := e.Rel(abs)
	res := RestoreResult{Path: rel}

	change := journal.Change{Path: rel, Op: ChangeWrite, NewHash: fileops.Hash(data)}
	f, err := e.editor.ReadFile(abs)
	switch {
	case err == nil:
		change.OldHash = f.Hash
		if f.Hash == change.NewHash {
			res.Action = ActionSkipped
			res.Detail = "content already matches"
			return res
		}
		if e.backupsOn() {
			bp, err := e.backups.Save(e.opts.RunID, rel, f.Content, f.Mode)
			if err != nil {
				res.Err = err
				return res
			}
			change.BackupPath = bp
		}
	case errors.Is(err, fs.ErrNotExist):
		change.Op = ChangeCreate
	default:
		res.Err = err
		return res
	}

	if err := e.editor.WriteFile(abs, data, mode, change.OldHash); err != nil {
		res.Err = err
		return res
	}
	res.Action = ActionRestored
	e.record(ctx, source, change)
	return res
}

// record journals a change made outside a recipe. Failures are logged only;
// the file operation already happened.
func (e *Engine) record(ctx context.Context, source string, c journal.Change) {
	if e.journal == nil || e.opts.DryRun {
		return
	}
	c.RunID = e.opts.RunID
	c.Recipe = source
	c.Status = journal.StatusApplied
	if err := e.journal.RecordChange(ctx, c); err != nil {
		e.log.Error("journal %s: %v", c.Path, err)
	}
}
