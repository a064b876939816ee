// Package vcs reads committed file content from the git repository that
// encloses a workspace, for restoring files before they are re-patched.
package vcs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"

	"patchkit/internal/fileops"
	"patchkit/internal/logging"
)

var (
	// ErrNotRepository is returned when no repository encloses the workspace.
	ErrNotRepository = errors.New("not a git repository")
	// ErrNotInHead is returned for paths that HEAD does not contain.
	ErrNotInHead = errors.New("path not in HEAD")
)

// Repo is an opened repository.
type Repo struct {
	repo *git.Repository
	root string
}

// Open finds the repository containing workspace, searching parent directories.
func Open(workspace string) (*Repo, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", workspace, ErrNotRepository)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%s: bare repository: %w", workspace, ErrNotRepository)
	}
	root := wt.Filesystem.Root()
	logging.VCSDebug("Opened repository at %s", root)
	return &Repo{repo: repo, root: root}, nil
}

// Root returns the worktree root.
func (r *Repo) Root() string {
	return r.root
}

// rel converts an absolute or root-relative path to a slash path inside the worktree.
func (r *Repo) rel(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, abs)
	}
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the repository: %w", path, ErrNotInHead)
	}
	return filepath.ToSlash(rel), nil
}

// HeadContent returns the content of path in the HEAD commit.
func (r *Repo) HeadContent(path string) ([]byte, error) {
	rel, err := r.rel(path)
	if err != nil {
		return nil, err
	}
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("%s: repository has no commits: %w", rel, ErrNotInHead)
		}
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	file, err := commit.File(rel)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s: %w", rel, ErrNotInHead)
		}
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	logging.VCSDebug("HEAD:%s (%d bytes, commit %s)", rel, len(content), head.Hash().String()[:8])
	return []byte(content), nil
}

// Restore overwrites the working copy of path with its HEAD content,
// keeping the file mode of an existing file.
func (r *Repo) Restore(path string) error {
	content, err := r.HeadContent(path)
	if err != nil {
		return err
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, abs)
	}
	perm := fs.FileMode(0644)
	if info, err := os.Stat(abs); err == nil {
		perm = info.Mode().Perm()
	}
	if err := fileops.WriteAtomic(abs, content, perm); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	logging.VCS("Restored %s from HEAD", path)
	return nil
}
