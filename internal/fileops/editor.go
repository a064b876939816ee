package fileops

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"patchkit/internal/logging"
)

// OpType defines the types of file operations.
type OpType string

const (
	OpRead   OpType = "read"
	OpWrite  OpType = "write"
	OpCreate OpType = "create"
	OpRemove OpType = "remove"
)

var (
	// ErrNotRegular is returned for directories, devices and other non-files.
	ErrNotRegular = errors.New("not a regular file")

	// ErrTooLarge is returned when a file exceeds the editor's size limit.
	ErrTooLarge = errors.New("file exceeds size limit")
)

// AuditEvent represents an audit event for file operations.
type AuditEvent struct {
	Op        OpType    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	OldHash   string    `json:"old_hash,omitempty"`
	NewHash   string    `json:"new_hash,omitempty"`
	Bytes     int       `json:"bytes,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// File is the content of a regular file plus the metadata needed to write it back.
type File struct {
	Path    string
	Content []byte
	Mode    fs.FileMode
	Hash    string
	ModTime time.Time
}

// Editor handles file reads and atomic writes with audit callbacks.
type Editor struct {
	mu sync.RWMutex

	auditCallback func(AuditEvent)

	// maxBytes caps reads; 0 disables the cap.
	maxBytes int64
}

// NewEditor creates an Editor. maxBytes <= 0 means unlimited.
func NewEditor(maxBytes int64) *Editor {
	return &Editor{maxBytes: maxBytes}
}

// SetAuditCallback sets the callback for file audit events.
func (e *Editor) SetAuditCallback(callback func(AuditEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auditCallback = callback
}

func (e *Editor) emitAudit(event AuditEvent) {
	e.mu.RLock()
	cb := e.auditCallback
	e.mu.RUnlock()

	if cb != nil {
		cb(event)
	}
}

// Hash computes the SHA256 hash of content as lowercase hex.
func Hash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// ReadFile reads a regular file. The returned error wraps fs.ErrNotExist
// when the file is missing.
func (e *Editor) ReadFile(path string) (*File, error) {
	timer := logging.StartTimer(logging.CategoryFiles, "File read")
	defer timer.Stop()

	info, err := os.Stat(path)
	if err != nil {
		e.emitAudit(AuditEvent{Op: OpRead, Timestamp: time.Now(), Path: path, Error: err.Error()})
		return nil, err
	}
	if !info.Mode().IsRegular() {
		err := fmt.Errorf("%s: %w", path, ErrNotRegular)
		e.emitAudit(AuditEvent{Op: OpRead, Timestamp: time.Now(), Path: path, Error: err.Error()})
		return nil, err
	}
	if e.maxBytes > 0 && info.Size() > e.maxBytes {
		err := fmt.Errorf("%s is %d bytes (limit %d): %w", path, info.Size(), e.maxBytes, ErrTooLarge)
		e.emitAudit(AuditEvent{Op: OpRead, Timestamp: time.Now(), Path: path, Error: err.Error()})
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logging.FilesError("File read failed: %s - %v", path, err)
		e.emitAudit(AuditEvent{Op: OpRead, Timestamp: time.Now(), Path: path, Error: err.Error()})
		return nil, err
	}

	f := &File{
		Path:    path,
		Content: content,
		Mode:    info.Mode().Perm(),
		Hash:    Hash(content),
		ModTime: info.ModTime(),
	}
	logging.FilesDebug("File read completed: %s (%d bytes)", path, len(content))
	e.emitAudit(AuditEvent{Op: OpRead, Timestamp: time.Now(), Path: path, OldHash: f.Hash, Bytes: len(content), Success: true})
	return f, nil
}

// WriteFile atomically replaces path with content. The mode of an existing
// file is preserved; new files get perm. oldHash is recorded in the audit
// event and may be empty.
func (e *Editor) WriteFile(path string, content []byte, perm fs.FileMode, oldHash string) error {
	timer := logging.StartTimer(logging.CategoryFiles, "File write")
	defer timer.Stop()

	op := OpWrite
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	} else {
		op = OpCreate
	}

	newHash := Hash(content)
	if err := WriteAtomic(path, content, perm); err != nil {
		logging.FilesError("File write failed: %s - %v", path, err)
		e.emitAudit(AuditEvent{Op: op, Timestamp: time.Now(), Path: path, OldHash: oldHash, Error: err.Error()})
		return err
	}

	logging.Files("File written: %s (%d bytes, hash=%s)", path, len(content), newHash[:16])
	e.emitAudit(AuditEvent{
		Op:        op,
		Timestamp: time.Now(),
		Path:      path,
		OldHash:   oldHash,
		NewHash:   newHash,
		Bytes:     len(content),
		Success:   true,
	})
	return nil
}

// Remove deletes a file or directory tree.
func (e *Editor) Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		e.emitAudit(AuditEvent{Op: OpRemove, Timestamp: time.Now(), Path: path, Error: err.Error()})
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	logging.Files("Removed: %s", path)
	e.emitAudit(AuditEvent{Op: OpRemove, Timestamp: time.Now(), Path: path, Success: true})
	return nil
}

// Exists reports whether path exists (file or directory).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteAtomic writes content to a temp file in the target's directory,
// syncs it, sets perm and renames it over path. Parent directories are created.
func WriteAtomic(path string, content []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".patchkit-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}
