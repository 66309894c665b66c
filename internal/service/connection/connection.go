// Package connection implements the per-family wallet connection state
// machine and the session-scoped manager that owns the machines.
package connection

import (
	"context"
	"time"

	"github.com/noccbuild/walletlink/internal/chain"
)

// Phase is the lifecycle position of a machine.
type Phase int

// Machine phases.
const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseDisconnecting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// State is the published wallet connection snapshot. Connected implies a
// non-empty Address.
type State struct {
	Family     chain.Family
	Address    string
	PublicKey  string
	ChainID    string
	Connected  bool
	VerifiedAt time.Time
}

// AuthProvider reports the application user on whose behalf wallet
// connections are made. Wallet prompts are never shown without one.
type AuthProvider interface {
	// CurrentUser returns the signed-in user id, or
	// ErrAuthenticationRequired when nobody is signed in.
	CurrentUser(ctx context.Context) (string, error)
}
