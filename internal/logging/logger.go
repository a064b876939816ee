// Package logging provides config-driven categorized file-based logging for patchkit.
// Logs are written to .patchkit/logs/ with separate files per category.
// Logging is controlled by logging.debug_mode in .patchkit/config.yaml - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config resolution
	CategoryRecipe  Category = "recipe"  // Recipe loading and validation
	CategoryPatch   Category = "patch"   // Edit evaluation, engine decisions
	CategoryFiles   Category = "files"   // Reads, atomic writes, backups
	CategoryJournal Category = "journal" // SQLite run journal
	CategoryVCS     Category = "vcs"     // Git HEAD lookups and restores
	CategorySyntax  Category = "syntax"  // Tree-sitter validation
	CategoryWatch   Category = "watch"   // fsnotify watcher
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryBoot,
	CategoryRecipe,
	CategoryPatch,
	CategoryFiles,
	CategoryJournal,
	CategoryVCS,
	CategorySyntax,
	CategoryWatch,
}

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// StructuredLogEntry is a single JSON log line.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	RunID     string                 `json:"run,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	config    Options
	configMu  sync.RWMutex
	logLevel  int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// ParseLevel maps a level name to its numeric value. Unknown names map to info.
func ParseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "info", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Initialize sets up the logging directory.
// Should be called once at startup. With DebugMode off it is a no-op.
func Initialize(dir string, opts Options) error {
	if dir == "" {
		return fmt.Errorf("logs directory required")
	}

	CloseAll()

	configMu.Lock()
	config = opts
	logLevel = ParseLevel(opts.Level)
	configMu.Unlock()

	logsDir = dir

	if !opts.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== patchkit logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", opts.Level)
	if len(opts.Categories) > 0 {
		enabled := 0
		for cat, on := range opts.Categories {
			if on {
				enabled++
			}
			boot.Debug("Category '%s': %v", cat, on)
		}
		boot.Info("Enabled categories: %d/%d", enabled, len(opts.Categories))
	} else {
		boot.Info("All categories enabled (no category filter)")
	}

	return nil
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func jsonFormat() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.JSONFormat
}

func currentLevel() int {
	configMu.RLock()
	defer configMu.RUnlock()
	return logLevel
}

func (l *Logger) write(level string, minLevel int, msg string, runID string, fields map[string]interface{}) {
	if l.logger == nil || currentLevel() > minLevel {
		return
	}
	if jsonFormat() {
		entry := StructuredLogEntry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     level,
			Message:   msg,
			RunID:     runID,
			Fields:    fields,
		}
		if data, err := json.Marshal(entry); err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	prefix := ""
	if runID != "" {
		prefix = fmt.Sprintf("[run:%s] ", runID)
	}
	if len(fields) > 0 {
		l.logger.Printf("[%s] %s%s | %v", levelTag(level), prefix, msg, fields)
		return
	}
	l.logger.Printf("[%s] %s%s", levelTag(level), prefix, msg)
}

func levelTag(level string) string {
	switch level {
	case "debug":
		return "DEBUG"
	case "warn":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write("debug", LevelDebug, fmt.Sprintf(format, args...), "", nil)
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("info", LevelInfo, fmt.Sprintf(format, args...), "", nil)
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("warn", LevelWarn, fmt.Sprintf(format, args...), "", nil)
}

// Error logs an error message (always logged if logger exists)
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("error", LevelError, fmt.Sprintf(format, args...), "", nil)
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Recipe(format string, args ...interface{})      { Get(CategoryRecipe).Info(format, args...) }
func RecipeDebug(format string, args ...interface{}) { Get(CategoryRecipe).Debug(format, args...) }
func RecipeWarn(format string, args ...interface{})  { Get(CategoryRecipe).Warn(format, args...) }

func Patch(format string, args ...interface{})      { Get(CategoryPatch).Info(format, args...) }
func PatchDebug(format string, args ...interface{}) { Get(CategoryPatch).Debug(format, args...) }
func PatchWarn(format string, args ...interface{})  { Get(CategoryPatch).Warn(format, args...) }
func PatchError(format string, args ...interface{}) { Get(CategoryPatch).Error(format, args...) }

func Files(format string, args ...interface{})      { Get(CategoryFiles).Info(format, args...) }
func FilesDebug(format string, args ...interface{}) { Get(CategoryFiles).Debug(format, args...) }
func FilesError(format string, args ...interface{}) { Get(CategoryFiles).Error(format, args...) }

func Journal(format string, args ...interface{})      { Get(CategoryJournal).Info(format, args...) }
func JournalDebug(format string, args ...interface{}) { Get(CategoryJournal).Debug(format, args...) }
func JournalError(format string, args ...interface{}) { Get(CategoryJournal).Error(format, args...) }

func VCS(format string, args ...interface{})      { Get(CategoryVCS).Info(format, args...) }
func VCSDebug(format string, args ...interface{}) { Get(CategoryVCS).Debug(format, args...) }

func Syntax(format string, args ...interface{})      { Get(CategorySyntax).Info(format, args...) }
func SyntaxDebug(format string, args ...interface{}) { Get(CategorySyntax).Debug(format, args...) }

func Watch(format string, args ...interface{})      { Get(CategoryWatch).Info(format, args...) }
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }
func WatchError(format string, args ...interface{}) { Get(CategoryWatch).Error(format, args...) }

// =============================================================================
// RUN-SCOPED LOGGING
// =============================================================================

// RunLogger tags every line with the run id of one CLI invocation.
type RunLogger struct {
	logger *Logger
	runID  string
	fields map[string]interface{}
}

// WithRunID creates a run-scoped logger.
func WithRunID(category Category, runID string) *RunLogger {
	return &RunLogger{
		logger: Get(category),
		runID:  runID,
		fields: make(map[string]interface{}),
	}
}

// WithField adds a field to every subsequent line.
func (r *RunLogger) WithField(key string, value interface{}) *RunLogger {
	r.fields[key] = value
	return r
}

func (r *RunLogger) Debug(format string, args ...interface{}) {
	r.logger.write("debug", LevelDebug, fmt.Sprintf(format, args...), r.runID, r.fields)
}

func (r *RunLogger) Info(format string, args ...interface{}) {
	r.logger.write("info", LevelInfo, fmt.Sprintf(format, args...), r.runID, r.fields)
}

func (r *RunLogger) Warn(format string, args ...interface{}) {
	r.logger.write("warn", LevelWarn, fmt.Sprintf(format, args...), r.runID, r.fields)
}

func (r *RunLogger) Error(format string, args ...interface{}) {
	r.logger.write("error", LevelError, fmt.Sprintf(format, args...), r.runID, r.fields)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
