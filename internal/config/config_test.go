package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Backup.Enabled {
		t.Error("backups should be on by default")
	}
	if cfg.Backup.KeepRuns != 20 {
		t.Errorf("expected KeepRuns=20, got %d", cfg.Backup.KeepRuns)
	}
	if cfg.RecipesDir != filepath.Join(".patchkit", "recipes") {
		t.Errorf("unexpected RecipesDir %q", cfg.RecipesDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("PATCHKIT_BACKUP_DIR", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Journal.Path != filepath.Join(".patchkit", "journal.db") {
		t.Errorf("unexpected journal path %q", cfg.Journal.Path)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".patchkit", "config.yaml")

	cfg := DefaultConfig()
	cfg.RecipesDir = "patches"
	cfg.Backup.KeepRuns = 3
	cfg.Validation.Balanced = true
	cfg.Logging.Categories = map[string]bool{"watch": false}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.RecipesDir != "patches" {
		t.Errorf("expected RecipesDir=patches, got %s", loaded.RecipesDir)
	}
	if loaded.Backup.KeepRuns != 3 {
		t.Errorf("expected KeepRuns=3, got %d", loaded.Backup.KeepRuns)
	}
	if !loaded.Validation.Balanced {
		t.Error("expected Balanced=true")
	}
	opts := loaded.Logging.Options()
	if on, ok := opts.Categories["watch"]; !ok || on {
		t.Errorf("expected watch category toggled off, got %v", opts.Categories)
	}
	if opts.DebugMode {
		t.Error("debug mode should default to off")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backup:\n  keep_runs: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backup.KeepRuns != 5 {
		t.Errorf("expected KeepRuns=5, got %d", cfg.Backup.KeepRuns)
	}
	if cfg.Validation.MaxFileBytes != 4<<20 {
		t.Errorf("default MaxFileBytes lost: %d", cfg.Validation.MaxFileBytes)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("backup: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative keep_runs", func(c *Config) { c.Backup.KeepRuns = -1 }},
		{"empty recipes dir", func(c *Config) { c.RecipesDir = "" }},
		{"backup without dir", func(c *Config) { c.Backup.Dir = "" }},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }},
		{"zero max bytes", func(c *Config) { c.Validation.MaxFileBytes = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetDebounce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Debounce = "2s"
	if got := cfg.GetDebounce(); got != 2*time.Second {
		t.Errorf("GetDebounce = %v", got)
	}
	cfg.Watch.Debounce = "garbage"
	if got := cfg.GetDebounce(); got != 500*time.Millisecond {
		t.Errorf("fallback debounce = %v", got)
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("/ws", "a/b"); got != filepath.Join("/ws", "a/b") {
		t.Errorf("Resolve relative = %q", got)
	}
	if got := Resolve("/ws", "/abs/p"); got != "/abs/p" {
		t.Errorf("Resolve absolute = %q", got)
	}
}

func TestLoggingOptions_DropsUnknownCategories(t *testing.T) {
	lc := LoggingConfig{
		Level:      "debug",
		DebugMode:  true,
		Categories: map[string]bool{"patch": true, "nonsense": false},
	}
	opts := lc.Options()
	if len(opts.Categories) != 1 || !opts.Categories["patch"] {
		t.Errorf("Categories = %v, want only patch", opts.Categories)
	}
	if opts.Level != "debug" || !opts.DebugMode {
		t.Errorf("unexpected options %+v", opts)
	}
	if (LoggingConfig{}).Options().Categories != nil {
		t.Error("no toggles should mean no category filter")
	}
}
