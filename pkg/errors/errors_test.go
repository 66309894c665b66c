package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLinkError_Error tests the error message format.
func TestLinkError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *LinkError
		want string
	}{
		{
			name: "message only",
			err:  &LinkError{Message: "something failed"},
			want: "something failed",
		},
		{
			name: "with cause",
			err:  &LinkError{Message: "outer", Cause: errors.New("inner")},
			want: "outer: inner",
		},
		{
			name: "with details sorted",
			err: &LinkError{
				Message: "failed",
				Details: map[string]string{"family": "stacks", "address": "SP123"},
			},
			want: "failed (address: SP123) (family: stacks)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// TestIs_MatchesByCode tests that wrapped sentinels still compare equal.
func TestIs_MatchesByCode(t *testing.T) {
	t.Parallel()

	wrapped := Wrap(ErrUserRejected, "connect stacks")
	assert.True(t, errors.Is(wrapped, ErrUserRejected))
	assert.False(t, errors.Is(wrapped, ErrNetwork))
}

// TestWrap_PreservesKindAndExitCode tests wrapping keeps classification.
func TestWrap_PreservesKindAndExitCode(t *testing.T) {
	t.Parallel()

	err := Wrap(ErrAuthenticationRequired, "connect")

	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindAuthRequired, le.Kind)
	assert.Equal(t, "AUTHENTICATION_REQUIRED", le.Code)
	assert.Equal(t, ExitAuth, le.ExitCode)
	assert.Equal(t, "connect: sign in to connect your wallet", le.Message)
}

// TestWrap_Nil tests that wrapping nil returns nil.
func TestWrap_Nil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Wrap(nil, "ignored"))
	assert.NoError(t, WithSuggestion(nil, "ignored"))
	assert.NoError(t, WithDetails(nil, nil))
}

// TestWrap_ForeignError tests wrapping a plain error.
func TestWrap_ForeignError(t *testing.T) {
	t.Parallel()

	err := Wrap(fmt.Errorf("dial tcp: refused"), "fetching balance")

	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindUnknown, le.Kind)
	assert.Equal(t, "GENERAL_ERROR", le.Code)
	assert.Contains(t, le.Error(), "dial tcp: refused")
}

// TestWithSuggestion tests attaching a suggestion.
func TestWithSuggestion(t *testing.T) {
	t.Parallel()

	err := WithSuggestion(ErrProviderUnavailable, "install the wallet extension")

	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "install the wallet extension", le.Suggestion)
	assert.Equal(t, KindProviderUnavailable, le.Kind)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

// TestWithCause tests translating a foreign error onto a sentinel.
func TestWithCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := WithCause(ErrNetwork, cause)

	assert.True(t, errors.Is(err, ErrNetwork))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, "network communication failed: connection refused", err.Error())
}

// TestKindOf tests kind extraction.
func TestKindOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindUserRejected, KindOf(ErrUserRejected))
	assert.Equal(t, KindPersistence, KindOf(Wrap(ErrPersistence, "upsert")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

// TestIsCancelled tests that user rejection is a cancel, not a failure.
func TestIsCancelled(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCancelled(ErrUserRejected))
	assert.True(t, IsCancelled(Wrap(ErrUserRejected, "connect rootstock")))
	assert.False(t, IsCancelled(ErrNetwork))
	assert.False(t, IsCancelled(nil))
}

// TestExitCode tests exit code mapping.
func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitAuth, ExitCode(ErrAuthenticationRequired))
	assert.Equal(t, ExitUnavailable, ExitCode(ErrProviderUnavailable))
	assert.Equal(t, ExitGeneral, ExitCode(errors.New("plain")))
}

// TestCode tests code extraction.
func TestCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TIMED_OUT", Code(ErrTimedOut))
	assert.Equal(t, "GENERAL_ERROR", Code(errors.New("plain")))
}
