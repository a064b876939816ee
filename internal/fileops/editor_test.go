package fileops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEditor_ReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "App.tsx")
	if err := os.WriteFile(path, []byte("export {};\n"), 0640); err != nil {
		t.Fatal(err)
	}

	var events []AuditEvent
	e := NewEditor(0)
	e.SetAuditCallback(func(ev AuditEvent) { events = append(events, ev) })

	f, err := e.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(f.Content) != "export {};\n" {
		t.Errorf("content = %q", f.Content)
	}
	if f.Mode != 0640 {
		t.Errorf("mode = %v", f.Mode)
	}
	if f.Hash != Hash(f.Content) {
		t.Error("hash mismatch")
	}
	if len(events) != 1 || events[0].Op != OpRead || !events[0].Success {
		t.Errorf("unexpected audit events: %+v", events)
	}
}

func TestEditor_ReadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := NewEditor(0).ReadFile(filepath.Join(t.TempDir(), "nope.ts"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestEditor_ReadFile_Directory(t *testing.T) {
	t.Parallel()

	_, err := NewEditor(0).ReadFile(t.TempDir())
	if !errors.Is(err, ErrNotRegular) {
		t.Fatalf("expected ErrNotRegular, got %v", err)
	}
}

func TestEditor_ReadFile_TooLarge(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "big.css")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", 64)), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := NewEditor(10).ReadFile(path)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestEditor_WriteFile_PreservesMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(path, []byte("old"), 0755); err != nil {
		t.Fatal(err)
	}

	var last AuditEvent
	e := NewEditor(0)
	e.SetAuditCallback(func(ev AuditEvent) { last = ev })

	if err := e.WriteFile(path, []byte("new"), 0644, Hash([]byte("old"))); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode not preserved: %v", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content = %q", data)
	}
	if last.Op != OpWrite || last.NewHash != Hash([]byte("new")) || last.OldHash != Hash([]byte("old")) {
		t.Errorf("unexpected audit event: %+v", last)
	}
}

func TestEditor_WriteFile_CreatesParents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "c.md")
	var last AuditEvent
	e := NewEditor(0)
	e.SetAuditCallback(func(ev AuditEvent) { last = ev })

	if err := e.WriteFile(path, []byte("# c\n"), 0644, ""); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if last.Op != OpCreate {
		t.Errorf("expected create op, got %s", last.Op)
	}
	if !Exists(path) {
		t.Error("file not created")
	}
}

func TestWriteAtomic_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "index.ts")
	for i := 0; i < 3; i++ {
		if err := WriteAtomic(path, []byte("x"), 0644); err != nil {
			t.Fatalf("WriteAtomic: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only the target, found %v", names)
	}
}

func TestEditor_Remove(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "css-backup")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "a.css"), []byte("a{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewEditor(0).Remove(dir); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if Exists(dir) {
		t.Error("directory still exists")
	}
}
