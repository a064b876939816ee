package patch

import (
	"context"
	"fmt"
	"os"

	"patchkit/internal/fileops"
	"patchkit/internal/journal"
	"patchkit/internal/logging"
)

// Journal change ops.
const (
	ChangeWrite  = "write"
	ChangeCreate = "create"
	ChangeRemove = "remove"
)

// undoStep reverses one committed write if a later one fails.
type undoStep func() error

// commit writes every writable buffer and applied operation. On the first
// failure everything written so far is put back and the error returned.
func (e *Engine) commit(ctx context.Context, p *plan) error {
	var (
		steps   []undoStep
		changes []journal.Change
	)
	fail := func(err error) error {
		e.rollback(steps)
		for _, b := range p.order {
			b.report.Written = false
		}
		for _, op := range p.ops {
			op.report.Written = false
		}
		return err
	}

	for _, b := range p.order {
		if !b.report.Writable() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		step, change, err := e.writeBuffer(b)
		if err != nil {
			b.report.Err = err
			return fail(fmt.Errorf("write %s: %w", b.rel, err))
		}
		steps = append(steps, step)
		changes = append(changes, change)
	}

	for _, op := range p.ops {
		if op.report.Outcome != OutcomeApplied {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		var (
			step   undoStep
			change journal.Change
			err    error
		)
		if op.remove {
			step, change, err = e.removeOp(op)
		} else {
			step, change, err = e.createOp(op)
		}
		if err != nil {
			op.report.Err = err
			return fail(fmt.Errorf("%s %s: %w", op.report.Op, op.rel, err))
		}
		steps = append(steps, step)
		changes = append(changes, change)
	}

	// A change the journal cannot record could never be undone, so the
	// writes are taken back as well.
	if e.journal != nil {
		for _, c := range changes {
			c.RunID = e.opts.RunID
			c.Recipe = p.recipe.Name
			c.Status = string(OutcomeApplied)
			if err := e.journal.RecordChange(ctx, c); err != nil {
				return fail(fmt.Errorf("journal %s: %w (writes rolled back)", c.Path, err))
			}
		}
	}
	return nil
}

func (e *Engine) backupsOn() bool {
	return e.opts.Backup && e.backups != nil
}

func (e *Engine) writeBuffer(b *buffer) (undoStep, journal.Change, error) {
	change := journal.Change{Path: b.rel, Op: ChangeWrite, OldHash: b.hash}
	if !b.exists {
		change.Op = ChangeCreate
	}

	if b.exists && e.backupsOn() {
		bp, err := e.backups.Save(e.opts.RunID, b.rel, b.disk, b.mode)
		if err != nil {
			return nil, change, err
		}
		b.report.BackupPath = bp
		change.BackupPath = bp
	}

	data := []byte(b.content)
	if err := e.editor.WriteFile(b.abs, data, b.mode, b.hash); err != nil {
		return nil, change, err
	}
	b.report.Written = true
	change.NewHash = fileops.Hash(data)
	e.log.Info("Wrote %s (%d bytes)", b.rel, len(data))

	return e.restoreStep(b.abs, b.exists, b.disk, b.mode), change, nil
}

func (e *Engine) createOp(op *pendingOp) (undoStep, journal.Change, error) {
	change := journal.Change{Path: op.rel, Op: ChangeCreate, OldHash: op.hash}
	if op.existed && e.backupsOn() {
		bp, err := e.backups.Save(e.opts.RunID, op.rel, op.disk, op.mode)
		if err != nil {
			return nil, change, err
		}
		op.report.BackupPath = bp
		change.BackupPath = bp
	}
	if err := e.editor.WriteFile(op.abs, op.content, op.mode, op.hash); err != nil {
		return nil, change, err
	}
	op.report.Written = true
	change.NewHash = fileops.Hash(op.content)
	return e.restoreStep(op.abs, op.existed, op.disk, op.mode), change, nil
}

func (e *Engine) removeOp(op *pendingOp) (undoStep, journal.Change, error) {
	change := journal.Change{Path: op.rel, Op: ChangeRemove, OldHash: op.hash}
	if e.backupsOn() {
		bp, err := e.backups.SaveTree(e.opts.RunID, op.rel, op.abs)
		if err != nil {
			return nil, change, err
		}
		op.report.BackupPath = bp
		change.BackupPath = bp
	}
	if err := e.editor.Remove(op.abs); err != nil {
		return nil, change, err
	}
	op.report.Written = true

	step := func() error {
		if op.report.BackupPath == "" {
			return fmt.Errorf("%s removed without backup", op.rel)
		}
		return e.backups.RestoreTree(e.opts.RunID, op.rel, op.abs)
	}
	return step, change, nil
}

// restoreStep puts back original bytes, or deletes a file that did not exist.
func (e *Engine) restoreStep(abs string, existed bool, original []byte, mode os.FileMode) undoStep {
	return func() error {
		if !existed {
			return os.Remove(abs)
		}
		return fileops.WriteAtomic(abs, original, mode)
	}
}

func (e *Engine) rollback(steps []undoStep) {
	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i](); err != nil {
			logging.PatchError("Rollback step failed: %v", err)
		}
	}
	if len(steps) > 0 {
		e.log.Warn("Rolled back %d write(s)", len(steps))
	}
}
