package config

import "patchkit/internal/logging"

// LoggingConfig configures the category log files under .patchkit/logs.
type LoggingConfig struct {
	Level      string          `yaml:"level"`       // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"` // one JSON object per line
	DebugMode  bool            `yaml:"debug_mode"`  // Master toggle - false = no log files
	Categories map[string]bool `yaml:"categories"`  // Per-category toggles, unlisted = on
}

// Options converts the config for logging.Initialize. Toggles for unknown
// categories are dropped.
func (c LoggingConfig) Options() logging.Options {
	var cats map[string]bool
	for _, cat := range logging.AllCategories {
		on, ok := c.Categories[string(cat)]
		if !ok {
			continue
		}
		if cats == nil {
			cats = make(map[string]bool)
		}
		cats[string(cat)] = on
	}
	return logging.Options{
		DebugMode:  c.DebugMode,
		Level:      c.Level,
		JSONFormat: c.JSONFormat,
		Categories: cats,
	}
}
