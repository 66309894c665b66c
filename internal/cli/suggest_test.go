package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/service/connector"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// TestNearest verifies typo suggestions respect the distance cutoff.
func TestNearest(t *testing.T) {
	t.Parallel()

	candidates := []string{"stacks", "rootstock"}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "exact match", input: "stacks", want: "stacks"},
		{name: "case folded", input: "Stacks", want: "stacks"},
		{name: "one edit away", input: "stcks", want: "stacks"},
		{name: "two edits away", input: "rootstok", want: "rootstock"},
		{name: "too far", input: "ethereum", want: ""},
		{name: "empty input", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, nearest(tt.input, candidates))
		})
	}
}

// TestParseFamilyValid verifies known family names resolve.
func TestParseFamilyValid(t *testing.T) {
	t.Parallel()

	family, err := parseFamily("stacks")
	require.NoError(t, err)
	assert.Equal(t, chain.Stacks, family)

	family, err = parseFamily("  Rootstock ")
	require.NoError(t, err)
	assert.Equal(t, chain.Rootstock, family)
}

// TestParseFamilyTypoSuggests verifies a near miss carries a suggestion.
func TestParseFamilyTypoSuggests(t *testing.T) {
	t.Parallel()

	_, err := parseFamily("stcks")
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrUnknownFamily))

	var le *linkerr.LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, `did you mean "stacks"?`, le.Suggestion)
	assert.Equal(t, "stcks", le.Details["family"])
}

// TestParseFamilyUnknownNoSuggestion verifies a distant name gets no
// suggestion.
func TestParseFamilyUnknownNoSuggestion(t *testing.T) {
	t.Parallel()

	_, err := parseFamily("solana")
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrUnknownFamily))

	var le *linkerr.LinkError
	require.ErrorAs(t, err, &le)
	assert.Empty(t, le.Suggestion)
}

// TestParseConnectorValid verifies connector names resolve case
// insensitively.
func TestParseConnectorValid(t *testing.T) {
	t.Parallel()

	p, err := parseConnector("GitHub")
	require.NoError(t, err)
	assert.Equal(t, connector.GitHub, p)

	p, err = parseConnector("vercel")
	require.NoError(t, err)
	assert.Equal(t, connector.Vercel, p)
}

// TestParseConnectorTypoSuggests verifies a near miss carries a
// suggestion.
func TestParseConnectorTypoSuggests(t *testing.T) {
	t.Parallel()

	_, err := parseConnector("vercal")
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrUnknownConnector))

	var le *linkerr.LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, `did you mean "vercel"?`, le.Suggestion)
}
