package patch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"patchkit/internal/fileops"
	"patchkit/internal/journal"
	"patchkit/internal/recipe"
)

type memJournal struct {
	mu      sync.Mutex
	changes []journal.Change
}

func (m *memJournal) RecordChange(_ context.Context, c journal.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, c)
	return nil
}

func (m *memJournal) forRun(runID string) []journal.Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []journal.Change
	for _, c := range m.changes {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	return out
}

type headRestorer map[string]string

func (h headRestorer) HeadContent(path string) ([]byte, error) {
	content, ok := h[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

type testEnv struct {
	ws      string
	journal *memJournal
	backups *fileops.BackupStore
}

func newEnv(t *testing.T, files map[string]string) *testEnv {
	t.Helper()
	ws := t.TempDir()
	for rel, content := range files {
		writeWS(t, ws, rel, content)
	}
	return &testEnv{
		ws:      ws,
		journal: &memJournal{},
		backups: fileops.NewBackupStore(filepath.Join(ws, ".patchkit", "backups")),
	}
}

func (env *testEnv) engine(t *testing.T, mutate func(o *Options, d *Deps)) *Engine {
	t.Helper()
	opts := Options{Workspace: env.ws, Backup: true}
	deps := Deps{Backups: env.backups, Journal: env.journal}
	if mutate != nil {
		mutate(&opts, &deps)
	}
	e, err := NewEngine(opts, deps)
	require.NoError(t, err)
	return e
}

func (env *testEnv) path(rel string) string {
	return filepath.Join(env.ws, filepath.FromSlash(rel))
}

func (env *testEnv) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(env.path(rel))
	require.NoError(t, err)
	return string(data)
}

func writeWS(t *testing.T, ws, rel, content string) {
	t.Helper()
	p := filepath.Join(ws, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func mustRecipe(t *testing.T, r *recipe.Recipe) *recipe.Recipe {
	t.Helper()
	require.NoError(t, r.Validate())
	return r
}
