package output

import (
	"fmt"
	"io"
	"os"
)

// Status messages for interactive commands. Informational and success
// lines go to stdout, warnings to stderr so piped output stays clean.

func emit(w io.Writer, prefix, msg string) {
	_, _ = fmt.Fprintln(w, prefix+msg)
}

// Info prints an informational message to stdout.
func Info(msg string) { emit(os.Stdout, "ℹ️  ", msg) }

// Infof prints a formatted informational message to stdout.
func Infof(format string, args ...any) { Info(fmt.Sprintf(format, args...)) }

// Warn prints a warning message to stderr.
func Warn(msg string) { emit(os.Stderr, "⚠️  ", msg) }

// Warnf prints a formatted warning message to stderr.
func Warnf(format string, args ...any) { Warn(fmt.Sprintf(format, args...)) }

// Success prints a success message to stdout.
func Success(msg string) { emit(os.Stdout, "✅ ", msg) }

// Successf prints a formatted success message to stdout.
func Successf(format string, args ...any) { Success(fmt.Sprintf(format, args...)) }
