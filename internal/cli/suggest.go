package cli

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/service/connector"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// maxSuggestDistance is the furthest edit distance still offered as a
// suggestion for a mistyped name.
const maxSuggestDistance = 2

// nearest returns the candidate closest to input, or "" when nothing is
// close enough.
func nearest(input string, candidates []string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	minDist := maxSuggestDistance + 1
	var suggestion string

	for _, candidate := range candidates {
		dist := levenshtein.ComputeDistance(input, candidate)
		if dist < minDist {
			minDist = dist
			suggestion = candidate
		}
		if dist == 0 {
			return candidate
		}
	}
	return suggestion
}

// parseFamily resolves a chain family argument, suggesting the nearest
// valid name on a typo.
func parseFamily(arg string) (chain.Family, error) {
	if family, ok := chain.ParseFamily(strings.ToLower(strings.TrimSpace(arg))); ok {
		return family, nil
	}

	err := linkerr.WithDetails(linkerr.ErrUnknownFamily, map[string]string{"family": arg})

	names := make([]string, 0, len(chain.Families()))
	for _, f := range chain.Families() {
		names = append(names, f.String())
	}
	if s := nearest(arg, names); s != "" {
		return "", linkerr.WithSuggestion(err, "did you mean \""+s+"\"?")
	}
	return "", err
}

// parseConnector resolves a connector argument, suggesting the nearest
// valid name on a typo.
func parseConnector(arg string) (connector.Provider, error) {
	p, err := connector.ParseProvider(arg)
	if err == nil {
		return p, nil
	}

	names := make([]string, 0, len(connector.Providers()))
	for _, c := range connector.Providers() {
		names = append(names, c.String())
	}
	if s := nearest(arg, names); s != "" {
		return "", linkerr.WithSuggestion(err, "did you mean \""+s+"\"?")
	}
	return "", err
}
