// Package provider adapts external wallet providers to a single interface
// the connection state machines can drive.
package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noccbuild/walletlink/internal/chain"
)

// Session is the result of a successful account request.
type Session struct {
	Family    chain.Family
	Address   string
	PublicKey string
	ChainID   string
}

// Provider is the wallet-facing surface used by the connection layer.
// Implementations wrap one wallet product for one chain family.
type Provider interface {
	// Family reports the chain family this provider serves.
	Family() chain.Family

	// Available reports whether the underlying wallet is reachable.
	Available() bool

	// RequestAccounts asks the wallet for the active account. When
	// forcePrompt is set the wallet must show its account picker even if
	// a grant already exists.
	RequestAccounts(ctx context.Context, forcePrompt bool) (*Session, error)

	// ChainID returns the wallet's active chain as a decimal string.
	ChainID(ctx context.Context) (string, error)

	// Disconnect revokes the session on the wallet side where supported.
	Disconnect(ctx context.Context) error

	// OnAccountsChanged registers an observer for account switches. The
	// returned function removes the observer and is safe to call more
	// than once.
	OnAccountsChanged(fn func(accounts []string)) (unsubscribe func())

	// OnChainChanged registers an observer for chain switches, reported
	// as decimal chain IDs.
	OnChainChanged(fn func(chainID string)) (unsubscribe func())
}

// Transport carries raw requests to a wallet and delivers its events.
// This is the seam between the adapters and whatever bridge actually
// reaches the wallet process.
type Transport interface {
	// Request performs a single wallet RPC call.
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Subscribe registers a listener for a wallet event stream. The
	// returned function removes the listener.
	Subscribe(event string, fn func(payload json.RawMessage)) (unsubscribe func())
}

// RPCError is a structured error returned by a wallet transport.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet rpc error %d: %s", e.Code, e.Message)
}

// Wallet RPC error codes, per EIP-1193.
const (
	// CodeUserRejected means the user dismissed the wallet prompt.
	CodeUserRejected = 4001

	// CodeUnauthorized means the requested method needs a prior grant.
	CodeUnauthorized = 4100

	// CodeDisconnected means the provider lost its chain connection.
	CodeDisconnected = 4900
)
