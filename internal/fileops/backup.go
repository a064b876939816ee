package fileops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"patchkit/internal/logging"
)

// ErrNoBackup is returned when a run holds no copy of the requested file.
var ErrNoBackup = errors.New("no backup for path")

// BackupStore keeps pre-write copies under <dir>/<run-id>/<relative path>.
type BackupStore struct {
	dir string
}

// NewBackupStore returns a store rooted at dir. The directory is created lazily.
func NewBackupStore(dir string) *BackupStore {
	return &BackupStore{dir: dir}
}

// Dir returns the store root.
func (b *BackupStore) Dir() string {
	return b.dir
}

// Path returns where the backup of rel for runID lives.
func (b *BackupStore) Path(runID, rel string) string {
	return filepath.Join(b.dir, runID, filepath.FromSlash(rel))
}

// Save copies content into the run's backup tree and returns its path.
// An existing backup for the same run and path is kept: the first copy
// taken in a run is the pre-run state.
func (b *BackupStore) Save(runID, rel string, content []byte, perm fs.FileMode) (string, error) {
	dest := b.Path(runID, rel)
	if Exists(dest) {
		return dest, nil
	}
	if err := WriteAtomic(dest, content, perm); err != nil {
		return "", fmt.Errorf("backup %s: %w", rel, err)
	}
	logging.FilesDebug("Backed up %s -> %s", rel, dest)
	return dest, nil
}

// SaveTree copies a file or directory tree at src into the run's backup tree.
func (b *BackupStore) SaveTree(runID, rel, src string) (string, error) {
	dest := b.Path(runID, rel)
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		sub, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, sub)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return WriteAtomic(target, data, info.Mode().Perm())
	})
	if err != nil {
		return "", fmt.Errorf("backup tree %s: %w", rel, err)
	}
	return dest, nil
}

// RestoreTree copies the run's backup of rel (file or directory) back to dest.
func (b *BackupStore) RestoreTree(runID, rel, dest string) error {
	src := b.Path(runID, rel)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s in run %s: %w", rel, runID, ErrNoBackup)
		}
		return err
	}
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		sub, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, sub)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return WriteAtomic(target, data, info.Mode().Perm())
	})
	if err != nil {
		return fmt.Errorf("restore tree %s: %w", rel, err)
	}
	logging.Files("Restored %s from run %s", rel, runID)
	return nil
}

// Load returns the backed-up content of rel for runID.
func (b *BackupStore) Load(runID, rel string) ([]byte, fs.FileMode, error) {
	p := b.Path(runID, rel)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%s in run %s: %w", rel, runID, ErrNoBackup)
		}
		return nil, 0, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, 0, err
	}
	return data, info.Mode().Perm(), nil
}

// Runs lists run directories, oldest first by modification time.
func (b *BackupStore) Runs() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type run struct {
		name string
		mod  int64
	}
	runs := make([]run, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, run{name: entry.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].mod == runs[j].mod {
			return runs[i].name < runs[j].name
		}
		return runs[i].mod < runs[j].mod
	})

	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.name
	}
	return names, nil
}

// Prune removes the oldest runs so that at most keep remain. keep <= 0 keeps all.
func (b *BackupStore) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	runs, err := b.Runs()
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(runs)-removed > keep {
		victim := filepath.Join(b.dir, runs[removed])
		if err := os.RemoveAll(victim); err != nil {
			return removed, fmt.Errorf("prune %s: %w", victim, err)
		}
		removed++
	}
	if removed > 0 {
		logging.Files("Pruned %d backup run(s) from %s", removed, b.dir)
	}
	return removed, nil
}
