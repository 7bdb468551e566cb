// Package logging provides config-driven categorized file-based logging for chatpanel.
// The terminal belongs to the TUI, so logs only ever go to files under the
// configured logs directory, one file per category and day.
// Logging is controlled by logging.debug_mode in the config file - when false, no logs are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, flag and config resolution
	CategorySession Category = "session" // Chat state transitions (send, reply, discard)
	CategoryAPI     Category = "api"     // Requests to the chat service
	CategoryUI      Category = "ui"      // Rendering and layout
	CategoryConfig  Category = "config"  // Config loading and hot reload
)

// Options mirrors the logging section of the config file.
// It lives here so the config package can depend on logging, not the other way round.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

type entry struct {
	logger *zap.Logger
	file   *os.File
}

var (
	loggers   = make(map[Category]*entry)
	loggersMu sync.Mutex

	logsDir  string
	options  Options
	level    zapcore.Level
	configMu sync.RWMutex
)

// Initialize sets up the logging directory and stores the options.
// Should be called once at startup. With debug mode off it is a silent no-op.
func Initialize(dir string, opts Options) error {
	if dir == "" {
		return fmt.Errorf("logs directory required")
	}

	configMu.Lock()
	logsDir = dir
	options = opts
	level = parseLevel(opts.Level)
	configMu.Unlock()

	if !opts.DebugMode {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("logging initialized",
		zap.String("dir", dir),
		zap.String("level", level.String()),
		zap.Bool("json", opts.JSONFormat))
	for cat, enabled := range opts.Categories {
		boot.Debug("category toggle", zap.String("category", cat), zap.Bool("enabled", enabled))
	}

	return nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return options.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !options.DebugMode {
		return false
	}
	if options.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := options.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or the category is disabled.
func Get(category Category) *zap.Logger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop()
	}

	configMu.RLock()
	dir, lvl, jsonFormat := logsDir, level, options.JSONFormat
	configMu.RUnlock()
	if dir == "" {
		return zap.NewNop()
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if e, ok := loggers[category]; ok {
		return e.logger
	}

	// Date prefix for easy rotation
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	logPath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return zap.NewNop()
	}

	var encoder zapcore.Encoder
	if jsonFormat {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), lvl)
	l := zap.New(core).Named(string(category))
	loggers[category] = &entry{logger: l, file: file}

	return l
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, e := range loggers {
		_ = e.logger.Sync()
		if e.file != nil {
			e.file.Close()
		}
	}
	loggers = make(map[Category]*entry)
}
