package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with one commit containing files.
func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		_, err := wt.Add(rel)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "patchkit", Email: "patchkit@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestOpen_DetectsParentRepository(t *testing.T) {
	dir := initRepo(t, map[string]string{"web/src/App.tsx": "app\n"})

	r, err := Open(filepath.Join(dir, "web"))
	require.NoError(t, err)
	assert.Equal(t, dir, r.Root())

	content, err := r.HeadContent(filepath.Join(dir, "web", "src", "App.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "app\n", string(content))
}

func TestOpen_NotRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestHeadContent_NotInHead(t *testing.T) {
	dir := initRepo(t, map[string]string{"a.ts": "a\n"})
	r, err := Open(dir)
	require.NoError(t, err)

	_, err = r.HeadContent("b.ts")
	assert.ErrorIs(t, err, ErrNotInHead)

	_, err = r.HeadContent(filepath.Join(filepath.Dir(dir), "elsewhere.ts"))
	assert.ErrorIs(t, err, ErrNotInHead)
}

func TestRestore(t *testing.T) {
	dir := initRepo(t, map[string]string{"src/useCards.ts": "export const useCards = () => [];\n"})
	target := filepath.Join(dir, "src", "useCards.ts")
	require.NoError(t, os.WriteFile(target, []byte("half patched"), 0600))

	r, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.Restore(target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "export const useCards = () => [];\n", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestHeadContent_EmptyRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	r, err := Open(dir)
	require.NoError(t, err)
	_, err = r.HeadContent("a.ts")
	assert.ErrorIs(t, err, ErrNotInHead)
}
