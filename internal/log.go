package internal

import (
	"log"
	"os"
	"strings"
)

// LogLevel orders message severities from quietest to noisiest.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

var levelTags = [...]string{"ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

// ParseLevel reads a level name, defaulting to INFO for unknown input.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LogLevelError
	case "WARN", "WARNING":
		return LogLevelWarn
	case "DEBUG":
		return LogLevelDebug
	case "TRACE":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

// Logger is a leveled printf logger. Named children tag their lines with
// the owning component and inherit the level they were created with.
type Logger struct {
	level LogLevel
	name  string
	out   *log.Logger
}

// NewLogger creates a logger writing to stderr at the given level.
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level, out: log.New(os.Stderr, "", log.LstdFlags)}
}

// NewDefaultLogger creates a logger honoring the LOG_LEVEL environment variable.
func NewDefaultLogger() *Logger {
	return NewLogger(ParseLevel(os.Getenv("LOG_LEVEL")))
}

// Named returns a child logger whose lines carry the component name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{level: l.level, name: name, out: l.out}
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel changes the log level of this logger only.
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *Logger) printf(level LogLevel, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	prefix := "[" + levelTags[level] + "] "
	if l.name != "" {
		prefix += l.name + ": "
	}
	l.out.Printf(prefix+format, args...)
}

// Error logs failures that abort an operation.
func (l *Logger) Error(format string, args ...interface{}) {
	l.printf(LogLevelError, format, args...)
}

// Warn logs recoverable problems.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.printf(LogLevelWarn, format, args...)
}

// Info logs normal operation milestones.
func (l *Logger) Info(format string, args ...interface{}) {
	l.printf(LogLevelInfo, format, args...)
}

// Debug logs diagnostic detail.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.printf(LogLevelDebug, format, args...)
}

// Trace logs per-step detail.
func (l *Logger) Trace(format string, args ...interface{}) {
	l.printf(LogLevelTrace, format, args...)
}

// DefaultLogger is the process-wide logger.
var DefaultLogger = NewDefaultLogger()
