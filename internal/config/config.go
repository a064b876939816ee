package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DirName is the per-workspace state directory.
const DirName = ".patchkit"

// FileName is the config file inside DirName.
const FileName = "config.yaml"

// Config holds all patchkit configuration.
type Config struct {
	// RecipesDir is where `apply` and `check` look when no paths are given.
	RecipesDir string `yaml:"recipes_dir"`

	Backup     BackupConfig     `yaml:"backup"`
	Journal    JournalConfig    `yaml:"journal"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Watch      WatchConfig      `yaml:"watch"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		RecipesDir: filepath.Join(DirName, "recipes"),

		Backup: BackupConfig{
			Enabled:  true,
			Dir:      filepath.Join(DirName, "backups"),
			KeepRuns: 20,
		},

		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(DirName, "journal.db"),
		},

		Validation: ValidationConfig{
			Syntax:       true,
			Balanced:     false,
			MaxFileBytes: 4 << 20,
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},

		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

// DefaultPath returns the config path for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, DirName, FileName)
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults (plus env overrides).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("PATCHKIT_RECIPES_DIR"); dir != "" {
		c.RecipesDir = dir
	}
	if dir := os.Getenv("PATCHKIT_BACKUP_DIR"); dir != "" {
		c.Backup.Dir = dir
	}
	if v := os.Getenv("PATCHKIT_NO_BACKUP"); v != "" {
		if off, err := strconv.ParseBool(v); err == nil && off {
			c.Backup.Enabled = false
		}
	}
	if path := os.Getenv("PATCHKIT_JOURNAL"); path != "" {
		if path == "off" {
			c.Journal.Enabled = false
		} else {
			c.Journal.Path = path
		}
	}
	if v := os.Getenv("PATCHKIT_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
			if on {
				c.Logging.Level = "debug"
			}
		}
	}
}

// ValidLogLevels lists accepted logging.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RecipesDir == "" {
		return fmt.Errorf("recipes_dir must not be empty")
	}
	if c.Backup.Enabled && c.Backup.Dir == "" {
		return fmt.Errorf("backup.dir must be set when backups are enabled")
	}
	if c.Backup.KeepRuns < 0 {
		return fmt.Errorf("backup.keep_runs must be >= 0")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path must be set when the journal is enabled")
	}
	if c.Validation.MaxFileBytes <= 0 {
		return fmt.Errorf("validation.max_file_bytes must be > 0")
	}

	validLevel := c.Logging.Level == ""
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging.level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("invalid watch.debounce %q: %w", c.Watch.Debounce, err)
	}
	return nil
}

// Resolve returns p joined to workspace unless it is already absolute.
func Resolve(workspace, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// LogsDir returns the directory for category log files.
func LogsDir(workspace string) string {
	return filepath.Join(workspace, DirName, "logs")
}
