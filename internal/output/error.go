package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// FormatError formats an error for display. Cancelled outcomes render
// as a plain notice, not an error.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	if linkerr.IsCancelled(err) {
		if format == FormatJSON {
			encoder := json.NewEncoder(w)
			encoder.SetIndent("", "  ")
			return encoder.Encode(map[string]string{"status": "cancelled"})
		}
		_, writeErr := fmt.Fprintln(w, "Cancelled.")
		return writeErr
	}

	if format == FormatJSON {
		return formatErrorJSON(w, err)
	}
	return formatErrorText(w, err)
}

func formatErrorJSON(w io.Writer, err error) error {
	detail := ErrorDetail{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		ExitCode: linkerr.ExitGeneral,
	}

	var le *linkerr.LinkError
	if errors.As(err, &le) {
		detail = ErrorDetail{
			Code:       le.Code,
			Message:    le.Message,
			Details:    le.Details,
			Suggestion: le.Suggestion,
			ExitCode:   le.ExitCode,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ErrorOutput{Error: detail})
}

func formatErrorText(w io.Writer, err error) error {
	var sb strings.Builder

	var le *linkerr.LinkError
	if errors.As(err, &le) {
		sb.WriteString(fmt.Sprintf("Error: %s\n", le.Message))

		if len(le.Details) > 0 {
			sb.WriteString("\nDetails:\n")
			for k, v := range le.Details {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
			}
		}

		if le.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("\nSuggestion: %s\n", le.Suggestion))
		}
	} else {
		sb.WriteString(fmt.Sprintf("Error: %s\n", err.Error()))
	}

	_, writeErr := w.Write([]byte(sb.String()))
	return writeErr
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		output := map[string]string{"status": "success", "message": message}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
