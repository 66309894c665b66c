// Package output renders command results for the walletlink CLI in
// either human-readable text or machine-readable JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects how command results are rendered.
type Format string

const (
	// FormatText renders results as human-readable lines and tables.
	FormatText Format = "text"
	// FormatJSON renders results as indented JSON documents.
	FormatJSON Format = "json"
	// FormatAuto picks text on a terminal and JSON when piped.
	FormatAuto Format = "auto"
)

// Formatter renders values to a writer in a fixed format. Commands
// hold one formatter for the life of an invocation.
type Formatter struct {
	format Format
	writer io.Writer
}

// NewFormatter creates a formatter writing to w in the given format.
func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{format: format, writer: w}
}

// Format returns the active output format.
func (f *Formatter) Format() Format { return f.format }

// Writer returns the destination writer.
func (f *Formatter) Writer() io.Writer { return f.writer }

// IsJSON reports whether results render as JSON.
func (f *Formatter) IsJSON() bool { return f.format == FormatJSON }

// Print renders v in the active format. JSON output is indented;
// text output uses the value's Stringer when it has one.
func (f *Formatter) Print(v any) error {
	if f.IsJSON() {
		enc := json.NewEncoder(f.writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	switch val := v.(type) {
	case string:
		_, err := fmt.Fprintln(f.writer, val)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.writer, val.String())
		return err
	default:
		_, err := fmt.Fprintf(f.writer, "%v\n", val)
		return err
	}
}

// Printf writes formatted text directly to the destination writer.
func (f *Formatter) Printf(format string, args ...any) error {
	_, err := fmt.Fprintf(f.writer, format, args...)
	return err
}

// DetectFormat resolves FormatAuto against the writer: text when w is
// a terminal, JSON otherwise. Explicit formats pass through unchanged.
func DetectFormat(w io.Writer, explicit Format) Format {
	if explicit != FormatAuto {
		return explicit
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: Fd() fits in int on supported platforms
		return FormatText
	}
	return FormatJSON
}

// ParseFormat parses a --output flag value. Unrecognized values fall
// back to auto-detection.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatAuto
	}
}
