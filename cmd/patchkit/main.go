package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"patchkit/cmd/patchkit/ui"
	"patchkit/internal/config"
	"patchkit/internal/fileops"
	"patchkit/internal/journal"
	"patchkit/internal/logging"
	"patchkit/internal/patch"
	"patchkit/internal/vcs"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger = zap.NewNop()
)

// errFailed is returned when a run completed but reported failures. The
// report has already been printed, so main exits 1 without repeating it.
var errFailed = errors.New("one or more recipes failed")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "patchkit",
	Short: "Idempotent, reviewable text patching for source trees",
	Long: `patchkit applies recipes of literal and regex edits to files in a workspace.

Every recipe is evaluated in memory first. Nothing is written unless the
recipe succeeds; writes are atomic, originals are backed up, and every run
is journaled so it can be inspected and undone.

Run "patchkit init" to create .patchkit/config.yaml and a recipes directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.patchkit/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// commandContext returns a context bounded by --timeout and cancelled on
// SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// env is the resolved workspace state shared by commands.
type env struct {
	workspace string
	cfg       *config.Config
	journal   *journal.Store
	styles    ui.Styles
}

// loadEnv resolves the workspace, loads config and starts file logging.
func loadEnv() (*env, error) {
	ws := workspace
	if ws == "" {
		var err error
		ws, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
	}
	ws, err := filepath.Abs(ws)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if info, err := os.Stat(ws); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", ws)
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := logging.Initialize(config.LogsDir(ws), cfg.Logging.Options()); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}
	logging.Boot("Workspace %s, config %s", ws, path)
	logger.Debug("Loaded config", zap.String("workspace", ws), zap.String("config", path))

	return &env{workspace: ws, cfg: cfg, styles: ui.DefaultStyles()}, nil
}

// openJournal opens the run journal when it is enabled. A nil store with a
// nil error means the journal is off.
func (e *env) openJournal() (*journal.Store, error) {
	if e.journal != nil || !e.cfg.Journal.Enabled {
		return e.journal, nil
	}
	store, err := journal.Open(config.Resolve(e.workspace, e.cfg.Journal.Path))
	if err != nil {
		return nil, err
	}
	e.journal = store
	return store, nil
}

func (e *env) close() {
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			logger.Warn("Closing journal", zap.Error(err))
		}
		e.journal = nil
	}
}

func (e *env) backupStore() *fileops.BackupStore {
	return fileops.NewBackupStore(config.Resolve(e.workspace, e.cfg.Backup.Dir))
}

// stateDirs are the paths glob targets must never reach: the state
// directory plus backup, journal and log locations configured elsewhere.
func (e *env) stateDirs() []string {
	return []string{
		filepath.Join(e.workspace, config.DirName),
		config.Resolve(e.workspace, e.cfg.Backup.Dir),
		config.Resolve(e.workspace, e.cfg.Journal.Path),
		config.LogsDir(e.workspace),
	}
}

// engineFlags are the per-command knobs that feed patch.Options.
type engineFlags struct {
	runID        string
	dryRun       bool
	noBackup     bool
	force        bool
	restoreFirst bool
}

// newEngine builds a patch engine wired to backups, the journal and git.
func (e *env) newEngine(f engineFlags) (*patch.Engine, error) {
	opts := patch.Options{
		Workspace:     e.workspace,
		RunID:         f.runID,
		DryRun:        f.dryRun,
		Backup:        e.cfg.Backup.Enabled && !f.noBackup,
		Force:         f.force,
		RestoreFirst:  f.restoreFirst,
		CheckSyntax:   e.cfg.Validation.Syntax,
		CheckBalanced: e.cfg.Validation.Balanced,
		MaxFileBytes:  e.cfg.Validation.MaxFileBytes,
		Exclude:       e.stateDirs(),
	}

	// The store is always attached so undo and restore --run can read old
	// backups; opts.Backup alone decides whether new ones are taken.
	deps := patch.Deps{Backups: e.backupStore(), Editor: newEditor(opts.MaxFileBytes)}
	if !f.dryRun {
		store, err := e.openJournal()
		if err != nil {
			return nil, err
		}
		if store != nil {
			deps.Journal = store
		}
	}
	repo, err := vcs.Open(e.workspace)
	switch {
	case err == nil:
		deps.Restorer = repo
	case errors.Is(err, vcs.ErrNotRepository):
		logger.Debug("Workspace is not a git repository; restore from HEAD disabled")
	default:
		return nil, err
	}

	return patch.NewEngine(opts, deps)
}

// newEditor returns a file editor whose audit events go to the debug log.
func newEditor(maxBytes int64) *fileops.Editor {
	ed := fileops.NewEditor(maxBytes)
	ed.SetAuditCallback(func(ev fileops.AuditEvent) {
		if ev.Op == fileops.OpRead && ev.Success {
			return
		}
		fields := []zap.Field{
			zap.String("op", string(ev.Op)),
			zap.String("path", ev.Path),
			zap.Bool("success", ev.Success),
		}
		if ev.NewHash != "" {
			fields = append(fields, zap.String("new_hash", ev.NewHash), zap.Int("bytes", ev.Bytes))
		}
		if ev.Error != "" {
			fields = append(fields, zap.String("error", ev.Error))
		}
		logger.Debug("File operation", fields...)
	})
	return ed
}

// beginRun journals the start of a writing command. It returns a finish
// func that stamps the final status; both are no-ops in dry-run mode or
// with the journal off.
func (e *env) beginRun(ctx context.Context, runID, command string, dryRun bool) (func(status string), error) {
	noop := func(string) {}
	if dryRun {
		return noop, nil
	}
	store, err := e.openJournal()
	if err != nil || store == nil {
		return noop, err
	}
	if err := store.BeginRun(ctx, runID, command, dryRun); err != nil {
		return noop, err
	}
	return func(status string) {
		// The command context may already be done; the row must still close.
		if err := store.FinishRun(context.Background(), runID, status); err != nil {
			logger.Warn("Finishing journal run", zap.String("run", runID), zap.Error(err))
		}
	}, nil
}

// pruneBackups enforces backup.keep_runs after a writing command.
func (e *env) pruneBackups() {
	if !e.cfg.Backup.Enabled || e.cfg.Backup.KeepRuns <= 0 {
		return
	}
	n, err := e.backupStore().Prune(e.cfg.Backup.KeepRuns)
	if err != nil {
		logger.Warn("Pruning backups", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Debug("Pruned backup runs", zap.Int("removed", n))
	}
}
