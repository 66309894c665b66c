package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// methodNotFound is the JSON-RPC code for an unsupported method.
const methodNotFound = -32601

// Rootstock adapts an EIP-1193 wallet transport to the Provider
// interface. Addresses are normalized to their EIP-55 checksum form
// before they leave this package.
type Rootstock struct {
	transport Transport
	logger    *config.Logger

	mu           sync.Mutex
	nextID       uint64
	accountSubs  map[uint64]func([]string)
	chainSubs    map[uint64]func(string)
	accountUnsub func()
	chainUnsub   func()
}

// Compile-time interface check
var _ Provider = (*Rootstock)(nil)

// NewRootstock creates a Rootstock provider over the given transport.
// A nil transport yields an unavailable provider.
func NewRootstock(transport Transport, logger *config.Logger) *Rootstock {
	if logger == nil {
		logger = config.NullLogger()
	}
	return &Rootstock{
		transport:   transport,
		logger:      logger,
		accountSubs: make(map[uint64]func([]string)),
		chainSubs:   make(map[uint64]func(string)),
	}
}

// Family reports the chain family this provider serves.
func (r *Rootstock) Family() chain.Family {
	return chain.Rootstock
}

// Available reports whether a wallet transport is present.
func (r *Rootstock) Available() bool {
	return r.transport != nil
}

// RequestAccounts asks the wallet for its active account. With
// forcePrompt the permission grant is re-requested first, which makes the
// wallet show its account picker even when a grant already exists.
func (r *Rootstock) RequestAccounts(ctx context.Context, forcePrompt bool) (*Session, error) {
	if r.transport == nil {
		return nil, linkerr.WithSuggestion(linkerr.ErrProviderUnavailable, "Install a Rootstock-compatible wallet")
	}

	if forcePrompt {
		params := []map[string]any{{"eth_accounts": map[string]any{}}}
		if _, err := r.transport.Request(ctx, "wallet_requestPermissions", params); err != nil {
			return nil, translateRPCError(err)
		}
	}

	raw, err := r.transport.Request(ctx, "eth_requestAccounts", nil)
	if err != nil {
		return nil, translateRPCError(err)
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "wallet returned malformed accounts")
	}
	if len(accounts) == 0 {
		return nil, linkerr.Wrap(linkerr.ErrProviderUnavailable, "wallet returned no accounts")
	}

	address, err := checksumAddress(accounts[0])
	if err != nil {
		return nil, err
	}

	chainID, err := r.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("rootstock session established for %s on chain %s", chain.ShortAddress(address), chainID)

	return &Session{
		Family:  chain.Rootstock,
		Address: address,
		ChainID: chainID,
	}, nil
}

// ChainID returns the wallet's active chain as a decimal string.
func (r *Rootstock) ChainID(ctx context.Context) (string, error) {
	if r.transport == nil {
		return "", linkerr.ErrProviderUnavailable
	}

	raw, err := r.transport.Request(ctx, "eth_chainId", nil)
	if err != nil {
		return "", translateRPCError(err)
	}

	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return "", linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "wallet returned malformed chain id")
	}

	return decodeChainID(hex)
}

// Disconnect revokes the account permission grant. Wallets that do not
// implement revocation are treated as already disconnected.
func (r *Rootstock) Disconnect(ctx context.Context) error {
	if r.transport == nil {
		return nil
	}

	params := []map[string]any{{"eth_accounts": map[string]any{}}}
	_, err := r.transport.Request(ctx, "wallet_revokePermissions", params)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == methodNotFound {
			return nil
		}
		return translateRPCError(err)
	}
	return nil
}

// OnAccountsChanged registers an observer for account switches. The
// transport carries at most one listener per event regardless of how many
// observers are registered.
func (r *Rootstock) OnAccountsChanged(fn func(accounts []string)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.accountSubs[id] = fn

	if r.accountUnsub == nil && r.transport != nil {
		r.accountUnsub = r.transport.Subscribe("accountsChanged", r.dispatchAccounts)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.accountSubs, id)
			if len(r.accountSubs) == 0 && r.accountUnsub != nil {
				r.accountUnsub()
				r.accountUnsub = nil
			}
		})
	}
}

// OnChainChanged registers an observer for chain switches.
func (r *Rootstock) OnChainChanged(fn func(chainID string)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.chainSubs[id] = fn

	if r.chainUnsub == nil && r.transport != nil {
		r.chainUnsub = r.transport.Subscribe("chainChanged", r.dispatchChain)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.chainSubs, id)
			if len(r.chainSubs) == 0 && r.chainUnsub != nil {
				r.chainUnsub()
				r.chainUnsub = nil
			}
		})
	}
}

// dispatchAccounts fans an accountsChanged payload out to observers.
func (r *Rootstock) dispatchAccounts(payload json.RawMessage) {
	var accounts []string
	if err := json.Unmarshal(payload, &accounts); err != nil {
		r.logger.Error("dropping malformed accountsChanged payload: %v", err)
		return
	}
	for i, acct := range accounts {
		if checksummed, err := checksumAddress(acct); err == nil {
			accounts[i] = checksummed
		}
	}

	r.mu.Lock()
	subs := make([]func([]string), 0, len(r.accountSubs))
	for _, fn := range r.accountSubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(accounts)
	}
}

// dispatchChain fans a chainChanged payload out to observers.
func (r *Rootstock) dispatchChain(payload json.RawMessage) {
	var hex string
	if err := json.Unmarshal(payload, &hex); err != nil {
		r.logger.Error("dropping malformed chainChanged payload: %v", err)
		return
	}
	chainID, err := decodeChainID(hex)
	if err != nil {
		r.logger.Error("dropping chainChanged with bad chain id %q: %v", hex, err)
		return
	}

	r.mu.Lock()
	subs := make([]func(string), 0, len(r.chainSubs))
	for _, fn := range r.chainSubs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(chainID)
	}
}

// checksumAddress validates a hex address and returns its EIP-55 form.
func checksumAddress(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", linkerr.WithDetails(linkerr.ErrInvalidAddress, map[string]string{
			"address": raw,
		})
	}
	return common.HexToAddress(raw).Hex(), nil
}

// decodeChainID converts a hex chain id like "0x1e" to decimal "30".
// Plain decimal input passes through unchanged.
func decodeChainID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		if s == "" {
			return "", linkerr.New(linkerr.KindInput, "BAD_CHAIN_ID", "empty chain id")
		}
		return s, nil
	}

	n, err := hexutil.DecodeBig(strings.ToLower(s))
	if err != nil {
		return "", linkerr.WithCause(linkerr.New(linkerr.KindInput, "BAD_CHAIN_ID", "invalid chain id"), err)
	}
	return n.String(), nil
}

// translateRPCError maps wallet transport errors onto the local error
// taxonomy.
func translateRPCError(err error) error {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return linkerr.WithCause(linkerr.ErrNetwork, err)
	}

	switch rpcErr.Code {
	case CodeUserRejected:
		return linkerr.WithCause(linkerr.ErrUserRejected, rpcErr)
	case CodeUnauthorized:
		return linkerr.WithCause(linkerr.ErrAuthenticationRequired, rpcErr)
	case CodeDisconnected:
		return linkerr.WithCause(linkerr.ErrProviderUnavailable, rpcErr)
	default:
		return linkerr.WithCause(linkerr.ErrNetwork, rpcErr)
	}
}
