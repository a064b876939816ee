package config

import "time"

// BackupConfig controls copies of original files taken before each write.
type BackupConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	KeepRuns int    `yaml:"keep_runs"` // 0 keeps every run
}

// JournalConfig controls the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ValidationConfig sets the checks run on every modified buffer.
type ValidationConfig struct {
	Syntax       bool  `yaml:"syntax"`   // tree-sitter parse of known extensions
	Balanced     bool  `yaml:"balanced"` // bracket balance
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// WatchConfig configures `patchkit watch`.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}
