// Package logging provides component-scoped structured logging for gosfv,
// built on charmbracelet/log.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Close()
//
//	logger := logging.Get("engine")
//	logger.Info("batch started", "files", len(items))
//
// Before Init is called all loggers are silent, so library packages may
// log unconditionally.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) toCharmLevel() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath(). "-" writes
	// to stderr instead of a file.
	Path string

	// Components maps component names to level overrides.
	Components map[string]string
}

// Logger wraps a charmbracelet logger with a component name.
type Logger struct {
	inner     *log.Logger
	component string
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) { l.inner.Debug(msg, args...) }

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) { l.inner.Info(msg, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) { l.inner.Warn(msg, args...) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) { l.inner.Error(msg, args...) }

// With returns a new logger with additional context.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{inner: l.inner.With(args...), component: l.component}
}

type state struct {
	mu          sync.Mutex
	initialized bool
	out         io.Writer
	file        *os.File
	level       Level
	components  map[string]Level
	loggers     map[string]*Logger
}

var globalState = &state{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
}

// DefaultLogPath returns the log file path under the XDG state directory.
func DefaultLogPath() string {
	path, err := xdg.StateFile(filepath.Join("gosfv", "gosfv.log"))
	if err != nil {
		return filepath.Join(os.TempDir(), "gosfv.log")
	}
	return path
}

// Init initializes the logging system. It may be called again to
// reconfigure; registered components are rebuilt, so loggers fetched with
// Get after the call use the new settings. Logger values obtained earlier
// keep their previous output and level.
func Init(cfg Config) error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	var out io.Writer
	var file *os.File
	switch cfg.Path {
	case "-":
		out = os.Stderr
	default:
		path := cfg.Path
		if path == "" {
			path = DefaultLogPath()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		out = file
	}

	if globalState.file != nil {
		_ = globalState.file.Close()
	}

	globalState.level = level
	globalState.components = components
	globalState.out = out
	globalState.file = file
	globalState.initialized = true

	// Rebuild existing loggers against the new configuration.
	for component := range globalState.loggers {
		globalState.loggers[component] = newLogger(component)
	}
	return nil
}

// Close flushes and closes the log file, if any.
func Close() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	globalState.initialized = false
	if globalState.file != nil {
		err := globalState.file.Close()
		globalState.file = nil
		return err
	}
	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *Logger {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if logger, ok := globalState.loggers[component]; ok {
		return logger
	}
	logger := newLogger(component)
	globalState.loggers[component] = logger
	return logger
}

// newLogger builds a component logger. Caller holds globalState.mu.
func newLogger(component string) *Logger {
	out := globalState.out
	if !globalState.initialized || out == nil {
		out = io.Discard
	}

	level := globalState.level
	if override, ok := globalState.components[component]; ok {
		level = override
	}

	inner := log.NewWithOptions(out, log.Options{
		Level:           level.toCharmLevel(),
		ReportTimestamp: true,
		Prefix:          component,
	})
	return &Logger{inner: inner, component: component}
}
