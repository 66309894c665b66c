// Package errors provides structured error handling for walletlink.
// It defines the error kinds surfaced to callers (authentication missing,
// provider unavailable, user rejection, network, persistence), sentinel
// errors, exit codes, and helpers for adding context and suggestions.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Successful execution
	ExitGeneral     = 1 // General/unknown error
	ExitInput       = 2 // Invalid input
	ExitAuth        = 3 // Application sign-in required
	ExitNotFound    = 4 // Resource not found
	ExitUnavailable = 5 // Provider or upstream unavailable
)

// Kind classifies an error for callers. Provider and network failures are
// converted to one of these at the state-machine boundary and never escape
// as raw upstream errors.
type Kind string

// Error kinds.
const (
	KindAuthRequired        Kind = "auth_required"        // app sign-in missing; prompt sign-in
	KindProviderUnavailable Kind = "provider_unavailable" // wallet extension not installed
	KindUserRejected        Kind = "user_rejected"        // human declined; a cancel, not a failure
	KindNetwork             Kind = "network"              // upstream unreachable or rate limited
	KindPersistence         Kind = "persistence"          // profile-store read/write failed; non-fatal
	KindTimeout             Kind = "timeout"              // popup or upstream flow timed out
	KindInput               Kind = "input"                // invalid caller input
	KindNotFound            Kind = "not_found"            // resource not found
	KindUnknown             Kind = "unknown"              // catch-all
)

// LinkError is the structured error type for walletlink.
type LinkError struct {
	Kind       Kind              // Error classification
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for the user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *LinkError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for LinkError. Two LinkErrors match when their
// codes match, so wrapped sentinels still compare equal.
func (e *LinkError) Is(target error) bool {
	var t *LinkError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &LinkError{
		Kind:     KindUnknown,
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &LinkError{
		Kind:     KindInput,
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	// ErrAuthenticationRequired means no application user is signed in.
	// Callers surface a sign-in prompt, never the wallet prompt.
	ErrAuthenticationRequired = &LinkError{
		Kind:     KindAuthRequired,
		Code:     "AUTHENTICATION_REQUIRED",
		Message:  "sign in to connect your wallet",
		ExitCode: ExitAuth,
	}

	// ErrProviderUnavailable means the browser does not expose a wallet
	// provider for the requested chain family.
	ErrProviderUnavailable = &LinkError{
		Kind:     KindProviderUnavailable,
		Code:     "PROVIDER_UNAVAILABLE",
		Message:  "wallet provider not available",
		ExitCode: ExitUnavailable,
	}

	// ErrUserRejected means the human declined the wallet prompt.
	// This is a cancelled outcome, not a failure; callers must not render
	// it as an error.
	ErrUserRejected = &LinkError{
		Kind:     KindUserRejected,
		Code:     "USER_REJECTED",
		Message:  "connection request declined",
		ExitCode: ExitSuccess,
	}

	ErrNetwork = &LinkError{
		Kind:     KindNetwork,
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrRateLimited = &LinkError{
		Kind:     KindNetwork,
		Code:     "RATE_LIMITED",
		Message:  "rate limited by upstream",
		ExitCode: ExitGeneral,
	}

	// ErrPersistence means a profile-store read or write failed. It is
	// always swallowed after logging; a wallet operation that already
	// succeeded against the provider must never be blocked by it.
	ErrPersistence = &LinkError{
		Kind:     KindPersistence,
		Code:     "PERSISTENCE_ERROR",
		Message:  "profile store unavailable",
		ExitCode: ExitGeneral,
	}

	// ErrTimedOut means a popup auth flow exceeded its deadline. Distinct
	// from outright failure so the UI can say "timed out, try again".
	ErrTimedOut = &LinkError{
		Kind:     KindTimeout,
		Code:     "TIMED_OUT",
		Message:  "operation timed out, try again",
		ExitCode: ExitGeneral,
	}

	ErrNotFound = &LinkError{
		Kind:     KindNotFound,
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrCacheNotFound = &LinkError{
		Kind:     KindNotFound,
		Code:     "CACHE_NOT_FOUND",
		Message:  "no cached data available",
		ExitCode: ExitNotFound,
	}

	ErrInvalidAddress = &LinkError{
		Kind:     KindInput,
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrUnknownFamily = &LinkError{
		Kind:     KindInput,
		Code:     "UNKNOWN_CHAIN_FAMILY",
		Message:  "unknown chain family",
		ExitCode: ExitInput,
	}

	ErrUnknownConnector = &LinkError{
		Kind:     KindInput,
		Code:     "UNKNOWN_CONNECTOR",
		Message:  "unknown connector",
		ExitCode: ExitInput,
	}

	ErrPopupBlocked = &LinkError{
		Kind:     KindUnknown,
		Code:     "POPUP_BLOCKED",
		Message:  "failed to open popup window",
		ExitCode: ExitGeneral,
	}

	ErrConfigInvalid = &LinkError{
		Kind:     KindInput,
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new LinkError with the given kind, code and message.
func New(kind Kind, code, message string) *LinkError {
	return &LinkError{
		Kind:     kind,
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context, preserving the kind, code
// and exit code of an underlying LinkError.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var le *LinkError
	if errors.As(err, &le) {
		return &LinkError{
			Kind:       le.Kind,
			Code:       le.Code,
			Message:    fmt.Sprintf("%s: %s", msg, le.Message),
			Details:    le.Details,
			Suggestion: le.Suggestion,
			Cause:      err,
			ExitCode:   le.ExitCode,
		}
	}

	return &LinkError{
		Kind:     KindUnknown,
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of a sentinel error carrying the underlying
// cause. Used at boundaries that translate upstream failures into the
// local taxonomy.
func WithCause(sentinel *LinkError, cause error) error {
	return &LinkError{
		Kind:       sentinel.Kind,
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var le *LinkError
	if errors.As(err, &le) {
		return &LinkError{
			Kind:       le.Kind,
			Code:       le.Code,
			Message:    le.Message,
			Details:    details,
			Suggestion: le.Suggestion,
			Cause:      le.Cause,
			ExitCode:   le.ExitCode,
		}
	}

	return &LinkError{
		Kind:     KindUnknown,
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var le *LinkError
	if errors.As(err, &le) {
		return &LinkError{
			Kind:       le.Kind,
			Code:       le.Code,
			Message:    le.Message,
			Details:    le.Details,
			Suggestion: suggestion,
			Cause:      le.Cause,
			ExitCode:   le.ExitCode,
		}
	}

	return &LinkError{
		Kind:       KindUnknown,
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// KindOf returns the kind for an error, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

// IsCancelled reports whether an error represents a user-cancelled outcome
// rather than a failure.
func IsCancelled(err error) bool {
	return KindOf(err) == KindUserRejected
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var le *LinkError
	if errors.As(err, &le) {
		return le.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var le *LinkError
	if errors.As(err, &le) {
		return le.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
