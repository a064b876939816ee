package patch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchkit/internal/fileops"
	"patchkit/internal/journal"
	"patchkit/internal/recipe"
)

type brokenJournal struct{}

func (brokenJournal) RecordChange(context.Context, journal.Change) error {
	return errors.New("database is locked")
}

func TestApply_WriteFailureRollsBack(t *testing.T) {
	env := newEnv(t, map[string]string{"src/App.tsx": appTSX})
	r := useStateRecipe()
	r.Create = []recipe.Create{
		{Path: "docs/README.md", Content: "# Docs\n"},
		{Path: "blocked/NOTES.md", Content: "notes\n"},
	}
	r = mustRecipe(t, r)

	// Once the first create lands, turn the second one's parent directory
	// into a regular file so its write fails.
	ed := fileops.NewEditor(0)
	ed.SetAuditCallback(func(ev fileops.AuditEvent) {
		if ev.Success && ev.Op == fileops.OpCreate && strings.HasSuffix(ev.Path, "README.md") {
			require.NoError(t, os.WriteFile(env.path("blocked"), []byte("in the way\n"), 0644))
		}
	})

	rep, err := env.engine(t, func(_ *Options, d *Deps) { d.Editor = ed }).Apply(context.Background(), r)
	require.Error(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, StatusFailed, rep.Status)

	assert.Equal(t, appTSX, env.read(t, "src/App.tsx"))
	assert.NoFileExists(t, env.path("docs/README.md"))
	assert.NoFileExists(t, filepath.Join(env.path("blocked"), "NOTES.md"))
	assert.False(t, rep.Files[0].Written)
	for _, op := range rep.Ops {
		assert.False(t, op.Written, op.Path)
	}
	assert.Error(t, rep.Ops[1].Err)
	assert.Empty(t, env.journal.changes)
}

func TestApply_JournalFailureRollsBack(t *testing.T) {
	env := newEnv(t, map[string]string{"src/App.tsx": appTSX})
	r := useStateRecipe()
	r.Create = []recipe.Create{{Path: "docs/README.md", Content: "# Docs\n"}}

	rep, err := env.engine(t, func(_ *Options, d *Deps) { d.Journal = brokenJournal{} }).Apply(context.Background(), mustRecipe(t, r))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rolled back")
	assert.Equal(t, StatusFailed, rep.Status)
	assert.False(t, rep.Files[0].Written)

	assert.Equal(t, appTSX, env.read(t, "src/App.tsx"))
	assert.NoFileExists(t, env.path("docs/README.md"))
}

func TestUndo_SkipsFileAtPreRunContent(t *testing.T) {
	env := newEnv(t, map[string]string{"src/App.tsx": appTSX})
	apply := env.engine(t, nil)
	_, err := apply.Apply(context.Background(), mustRecipe(t, useStateRecipe()))
	require.NoError(t, err)
	changes := env.journal.forRun(apply.RunID())

	writeWS(t, env.ws, "src/App.tsx", appTSX)

	results, err := env.engine(t, nil).Undo(context.Background(), apply.RunID(), changes)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, ActionSkipped, results[0].Action)
}
