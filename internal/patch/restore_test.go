package patch

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchkit/internal/journal"
	"patchkit/internal/recipe"
)

func TestUndo_RestoresPreRunState(t *testing.T) {
	env := newEnv(t, map[string]string{
		"src/App.tsx":            appTSX,
		"src/css-backup/old.css": ".old {}\n",
	})
	r := useStateRecipe()
	r.Create = []recipe.Create{{Path: "docs/README.md", Content: "# Docs\n"}}
	r.Remove = []recipe.Remove{{Path: "src/css-backup"}}

	apply := env.engine(t, nil)
	rep, err := apply.Apply(context.Background(), mustRecipe(t, r))
	require.NoError(t, err)
	require.Equal(t, StatusOK, rep.Status)
	changes := env.journal.forRun(apply.RunID())
	require.Len(t, changes, 3)

	undo := env.engine(t, nil)
	results, err := undo.Undo(context.Background(), apply.RunID(), changes)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.NoError(t, res.Err, res.Path)
	}
	assert.Equal(t, ActionRestored, results[0].Action)
	assert.Equal(t, ActionDeleted, results[1].Action)
	assert.Equal(t, ActionRestored, results[2].Action)

	assert.Equal(t, appTSX, env.read(t, "src/App.tsx"))
	assert.Equal(t, ".old {}\n", env.read(t, "src/css-backup/old.css"))
	assert.NoFileExists(t, env.path("docs/README.md"))
	assert.NotEmpty(t, env.journal.forRun(undo.RunID()))
}

func TestUndo_SameFileTwiceInOneRun(t *testing.T) {
	env := newEnv(t, map[string]string{"src/App.tsx": appTSX})
	cssImport := mustRecipe(t, &recipe.Recipe{
		Name:    "styles-import",
		Targets: []string{"src/App.tsx"},
		Edits: []recipe.Edit{{
			Find:    "import { useCards } from '../hooks/useCards';",
			Replace: "import { useCards } from '../hooks/useCards';\nimport './App.css';",
		}},
	})

	apply := env.engine(t, nil)
	for _, r := range []*recipe.Recipe{mustRecipe(t, useStateRecipe()), cssImport} {
		rep, err := apply.Apply(context.Background(), r)
		require.NoError(t, err)
		require.Equal(t, StatusOK, rep.Status, r.Name)
	}
	changes := env.journal.forRun(apply.RunID())
	require.Len(t, changes, 2)

	results, err := env.engine(t, nil).Undo(context.Background(), apply.RunID(), changes)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, ActionRestored, results[0].Action)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, ActionSkipped, results[1].Action)
	assert.Equal(t, appTSX, env.read(t, "src/App.tsx"))
}

func TestUndo_RefusesModifiedFile(t *testing.T) {
	env := newEnv(t, map[string]string{"src/App.tsx": appTSX})
	apply := env.engine(t, nil)
	_, err := apply.Apply(context.Background(), mustRecipe(t, useStateRecipe()))
	require.NoError(t, err)
	changes := env.journal.forRun(apply.RunID())

	writeWS(t, env.ws, "src/App.tsx", "edited by hand\n")

	results, err := env.engine(t, nil).Undo(context.Background(), apply.RunID(), changes)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "edited by hand\n", env.read(t, "src/App.tsx"))

	forced, err := env.engine(t, func(o *Options, _ *Deps) { o.Force = true }).Undo(context.Background(), apply.RunID(), changes)
	require.NoError(t, err)
	assert.NoError(t, forced[0].Err)
	assert.Equal(t, appTSX, env.read(t, "src/App.tsx"))
}

func TestUndo_SkipsUndoneChanges(t *testing.T) {
	env := newEnv(t, nil)
	results, err := env.engine(t, nil).Undo(context.Background(), "r1", []journal.Change{
		{Path: "a.ts", Op: ChangeWrite, Status: journal.StatusUndone},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ActionSkipped, results[0].Action)
}

func TestRestoreHead(t *testing.T) {
	env := newEnv(t, map[string]string{"src/App.tsx": "broken\n", "src/ok.ts": "same\n"})
	head := headRestorer{
		env.path("src/App.tsx"): appTSX,
		env.path("src/ok.ts"):   "same\n",
	}
	e := env.engine(t, func(_ *Options, d *Deps) { d.Restorer = head })

	results, err := e.RestoreHead(context.Background(), []string{"src/App.tsx", "src/ok.ts", "src/untracked.ts"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, ActionRestored, results[0].Action)
	assert.Equal(t, appTSX, env.read(t, "src/App.tsx"))
	assert.Equal(t, ActionSkipped, results[1].Action)
	assert.Error(t, results[2].Err)

	backup, _, err := env.backups.Load(e.RunID(), "src/App.tsx")
	require.NoError(t, err)
	assert.Equal(t, "broken\n", string(backup))
}

func TestRestoreHead_NoRepository(t *testing.T) {
	env := newEnv(t, nil)
	_, err := env.engine(t, nil).RestoreHead(context.Background(), []string{"a.ts"})
	assert.ErrorIs(t, err, ErrNoRestorer)
}

func TestRestoreFromRun(t *testing.T) {
	env := newEnv(t, map[string]string{"src/App.tsx": appTSX})
	apply := env.engine(t, nil)
	_, err := apply.Apply(context.Background(), mustRecipe(t, useStateRecipe()))
	require.NoError(t, err)

	results, err := env.engine(t, nil).RestoreFromRun(context.Background(), apply.RunID(), []string{"src/App.tsx", "src/other.ts"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, appTSX, env.read(t, "src/App.tsx"))
	assert.Error(t, results[1].Err)

	_, err = os.Stat(env.path("src/other.ts"))
	assert.True(t, os.IsNotExist(err))
}
