// Package journal records every patchkit run and the file changes it made
// in a SQLite database, so runs can be listed and undone.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"patchkit/internal/logging"
)

var (
	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRun is returned when an ID prefix matches several runs.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// Change statuses.
const (
	StatusApplied = "applied"
	StatusUndone  = "undone"
)

// Run is one patchkit invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Command    string
	DryRun     bool
	Status     string
	Changes    int
}

// Change is one committed file operation.
type Change struct {
	ID         int64
	RunID      string
	Recipe     string
	Path       string // workspace-relative
	Op         string // write, create, remove
	OldHash    string
	NewHash    string
	BackupPath string
	Status     string
	CreatedAt  time.Time
}

// Store is the journal database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, dbPath: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.JournalDebug("Journal opened: %s", path)
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		command TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		recipe TEXT NOT NULL,
		path TEXT NOT NULL,
		op TEXT NOT NULL,
		old_hash TEXT,
		new_hash TEXT,
		backup_path TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_changes_run ON changes(run_id);
	CREATE INDEX IF NOT EXISTS idx_changes_recipe_path ON changes(recipe, path);
	`
	_, err := s.db.Exec(schema)
	return err
}

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, id, command string, dryRun bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, command, dry_run, status) VALUES (?, ?, ?, ?, 'running')`,
		id, formatTime(time.Now()), command, boolToInt(dryRun))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	logging.Journal("Run %s started: %s", id, command)
	return nil
}

// FinishRun stamps the end of a run with its final status.
func (s *Store) FinishRun(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		formatTime(time.Now()), status, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	logging.Journal("Run %s finished: %s", id, status)
	return nil
}

// RecordChange appends a change to its run.
func (s *Store) RecordChange(ctx context.Context, c Change) error {
	if c.Status == "" {
		c.Status = StatusApplied
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO changes (run_id, recipe, path, op, old_hash, new_hash, backup_path, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, c.Recipe, c.Path, c.Op, c.OldHash, c.NewHash, c.BackupPath, c.Status, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("record change: %w", err)
	}
	logging.JournalDebug("Run %s: %s %s (%s)", c.RunID, c.Op, c.Path, c.Recipe)
	return nil
}

// SetChangeStatus updates the status of every change in a run.
func (s *Store) SetChangeStatus(ctx context.Context, runID, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE changes SET status = ? WHERE run_id = ?`, status, runID)
	if err != nil {
		return fmt.Errorf("update changes: %w", err)
	}
	return nil
}

const runColumns = `
	SELECT r.id, r.started_at, r.finished_at, r.command, r.dry_run, r.status,
		(SELECT COUNT(*) FROM changes c WHERE c.run_id = r.id)
	FROM runs r`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r        Run
		started  sql.NullString
		finished sql.NullString
		dryRun   int
	)
	if err := row.Scan(&r.ID, &started, &finished, &r.Command, &dryRun, &r.Status, &r.Changes); err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	r.DryRun = dryRun != 0
	return r, nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := runColumns + ` ORDER BY r.started_at DESC, r.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns the run whose ID equals or starts with idOrPrefix.
func (s *Store) Run(ctx context.Context, idOrPrefix string) (*Run, error) {
	if idOrPrefix == "" {
		return nil, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		runColumns+` WHERE r.id = ? OR substr(r.id, 1, ?) = ? ORDER BY r.id = ? DESC LIMIT 2`,
		idOrPrefix, len(idOrPrefix), idOrPrefix, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%s: %w", idOrPrefix, ErrRunNotFound)
	case found[0].ID == idOrPrefix || len(found) == 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%s: %w", idOrPrefix, ErrAmbiguousRun)
	}
}

// Changes returns a run's changes in the order they were made.
func (s *Store) Changes(ctx context.Context, runID string) ([]Change, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, recipe, path, op, old_hash, new_hash, backup_path, status, created_at
		FROM changes WHERE run_id = ? ORDER BY id`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// LastApplied returns the most recent applied change for recipe. An empty
// path matches any file. ok is false when the recipe never changed anything.
func (s *Store) LastApplied(ctx context.Context, recipe, path string) (c Change, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, recipe, path, op, old_hash, new_hash, backup_path, status, created_at
		FROM changes
		WHERE recipe = ? AND (? = '' OR path = ?) AND status = ?
		ORDER BY id DESC LIMIT 1`, recipe, path, path, StatusApplied)
	c, err = scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Change{}, false, nil
	}
	if err != nil {
		return Change{}, false, fmt.Errorf("last applied: %w", err)
	}
	return c, true, nil
}

func scanChange(row interface{ Scan(...any) error }) (Change, error) {
	var (
		c                            Change
		oldHash, newHash, backupPath sql.NullString
		created                      sql.NullString
	)
	if err := row.Scan(&c.ID, &c.RunID, &c.Recipe, &c.Path, &c.Op, &oldHash, &newHash, &backupPath, &c.Status, &created); err != nil {
		return Change{}, err
	}
	c.OldHash = oldHash.String
	c.NewHash = newHash.String
	c.BackupPath = backupPath.String
	c.CreatedAt = parseTime(created)
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
