package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patchkit/internal/journal"
	"patchkit/internal/patch"
)

var (
	restoreRun      string
	restoreNoBackup bool

	historyLimit int

	undoForce bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore FILE...",
	Short: "Restore files from git HEAD or from a run's backups",
	Long: `Overwrites each file with its content at git HEAD. With --run, the copy
backed up by that run is used instead. The current content is backed up and
the restore is journaled, so it can itself be undone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRestore,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled runs, newest first",
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN",
	Short: "List the changes made by a run (id or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var undoCmd = &cobra.Command{
	Use:   "undo RUN",
	Short: "Reverse every change made by a run",
	Long: `Restores every file the run wrote from its backup (latest change first),
deletes files the run created and brings back files it removed.

Files modified after the run are left alone unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runUndo,
}

func init() {
	restoreCmd.Flags().StringVar(&restoreRun, "run", "", "Restore from this run's backups instead of git HEAD")
	restoreCmd.Flags().BoolVar(&restoreNoBackup, "no-backup", false, "Do not copy the current content before restoring")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list (0 = all)")
	historyCmd.AddCommand(historyShowCmd)

	undoCmd.Flags().BoolVar(&undoForce, "force", false, "Overwrite files modified since the run")
}

// requireJournal opens the journal or explains that it is disabled.
func (e *env) requireJournal() (*journal.Store, error) {
	store, err := e.openJournal()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("the journal is disabled (journal.enabled: false)")
	}
	return store, nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	source := restoreRun
	if source != "" {
		if store, _ := e.openJournal(); store != nil {
			run, err := store.Run(ctx, restoreRun)
			if err != nil {
				return err
			}
			source = run.ID
		}
	}

	runID := patch.NewRunID()
	finish, err := e.beginRun(ctx, runID, "restore", false)
	if err != nil {
		return err
	}
	eng, err := e.newEngine(engineFlags{runID: runID, noBackup: restoreNoBackup})
	if err != nil {
		finish(string(patch.StatusFailed))
		return err
	}

	var results []patch.RestoreResult
	if source != "" {
		results, err = eng.RestoreFromRun(ctx, source, args)
	} else {
		results, err = eng.RestoreHead(ctx, args)
	}
	p := newPrinter(cmd.OutOrStdout(), e.styles, false)
	failed := p.restoreResults(results)
	if err != nil {
		finish(string(patch.StatusFailed))
		return err
	}
	if failed {
		finish(string(patch.StatusFailed))
		return errFailed
	}
	finish(string(patch.StatusOK))
	e.pruneBackups()
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()
	store, err := e.requireJournal()
	if err != nil {
		return err
	}

	runs, err := store.Runs(ctx, historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tCHANGES\tCOMMAND")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Status, r.Changes, r.Command)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()
	store, err := e.requireJournal()
	if err != nil {
		return err
	}

	run, err := store.Run(ctx, args[0])
	if err != nil {
		return err
	}
	changes, err := store.Changes(ctx, run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "Command: %s\n", run.Command)
	fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Took:    %v\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "Status:  %s\n\n", run.Status)
	if len(changes) == 0 {
		fmt.Fprintln(out, "No changes.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OP\tPATH\tRECIPE\tSTATUS\tBACKUP")
	for _, c := range changes {
		backup := c.BackupPath
		if backup == "" {
			backup = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Op, c.Path, c.Recipe, c.Status, backup)
	}
	return tw.Flush()
}

func runUndo(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()
	store, err := e.requireJournal()
	if err != nil {
		return err
	}

	run, err := store.Run(ctx, args[0])
	if err != nil {
		return err
	}
	changes, err := store.Changes(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s made no changes.\n", shortID(run.ID))
		return nil
	}

	runID := patch.NewRunID()
	finish, err := e.beginRun(ctx, runID, "undo "+run.ID, false)
	if err != nil {
		return err
	}
	eng, err := e.newEngine(engineFlags{runID: runID, force: undoForce})
	if err != nil {
		finish(string(patch.StatusFailed))
		return err
	}
	logger.Info("Undoing run", zap.String("run", run.ID), zap.Int("changes", len(changes)))

	results, err := eng.Undo(ctx, run.ID, changes)
	p := newPrinter(cmd.OutOrStdout(), e.styles, false)
	failed := p.restoreResults(results)
	if err != nil {
		finish(string(patch.StatusFailed))
		return err
	}
	if failed {
		finish(string(patch.StatusPartial))
		return errFailed
	}
	if err := store.SetChangeStatus(ctx, run.ID, journal.StatusUndone); err != nil {
		finish(string(patch.StatusFailed))
		return err
	}
	finish(string(patch.StatusOK))
	fmt.Fprintf(cmd.OutOrStdout(), "🎉 Run %s undone\n", shortID(run.ID))
	return nil
}
