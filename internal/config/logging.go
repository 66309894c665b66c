package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel controls logging verbosity.
type LogLevel int

// Verbosity levels, ordered from silent to chatty.
const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

//nolint:gochecknoglobals // static level-name table
var logLevelNames = map[LogLevel]string{
	LogLevelOff:   "off",
	LogLevelError: "error",
	LogLevelInfo:  "info",
	LogLevelDebug: "debug",
}

// ParseLogLevel parses a verbosity name. Unknown names fall back to
// error so a typo in the config never silences failures.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LogLevelOff
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelError
	}
}

// String returns the level name.
func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return "error"
}

// Logger appends timestamped lines to a log file. Commands log
// diagnostics here so stdout stays reserved for results. A nil file
// (level off, or no path configured) makes every call a no-op.
type Logger struct {
	mu    sync.Mutex
	level LogLevel
	file  *os.File
}

// NewLogger opens the log file at filePath for appending. A leading
// "~/" expands to the user's home directory.
func NewLogger(level LogLevel, filePath string) (*Logger, error) {
	if level == LogLevelOff || filePath == "" {
		return &Logger{level: LogLevelOff}, nil
	}

	if rest, ok := strings.CutPrefix(filePath, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		filePath = filepath.Join(home, rest)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // G304: log path comes from validated config
	if err != nil {
		return nil, err
	}

	return &Logger{level: level, file: f}, nil
}

// NullLogger returns a logger that discards everything.
func NullLogger() *Logger {
	return &Logger{level: LogLevelOff}
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.log(LogLevelDebug, format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) { l.log(LogLevelInfo, format, args...) }

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) { l.log(LogLevelError, format, args...) }

func (l *Logger) log(level LogLevel, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil || level > l.level {
		return
	}

	_, _ = fmt.Fprintf(l.file, "%s [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		strings.ToUpper(level.String()),
		fmt.Sprintf(format, args...))
}
