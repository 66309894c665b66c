// Package balance keeps displayed wallet balances in sync with the
// chain. Fetches are debounced, rate limited and cached; observers learn
// about new values over the event bus.
package balance

import (
	"context"
	"time"

	"github.com/noccbuild/walletlink/internal/chain"
)

// DefaultTTL is how long a fetched balance set stays authoritative.
const DefaultTTL = 5 * time.Minute

// DefaultDebounce is the window in which repeat fetch requests collapse
// onto the previous result.
const DefaultDebounce = time.Second

// Set is an atomically-replaced snapshot of an address's balances,
// formatted for display and keyed by asset symbol.
type Set struct {
	Family    chain.Family
	Address   string
	Balances  map[string]string
	Loading   bool
	FetchedAt time.Time
}

// Clone returns a copy safe to hand to observers.
func (s Set) Clone() Set {
	out := s
	out.Balances = make(map[string]string, len(s.Balances))
	for k, v := range s.Balances {
		out.Balances[k] = v
	}
	return out
}

// Fetcher reads raw balances for one chain family and returns them
// formatted for display.
type Fetcher interface {
	// Family reports the chain family this fetcher serves.
	Family() chain.Family

	// Fetch returns the balance set for an address. Implementations
	// handle partial upstream failure themselves: a missing secondary
	// asset yields "0" for it, not an error.
	Fetch(ctx context.Context, address string) (map[string]string, error)
}
