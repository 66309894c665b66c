package provider

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// stacksAddressEntry is one account in a Stacks wallet response.
type stacksAddressEntry struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
}

// stacksAddressResponse is the payload returned by stx_getAddresses and
// stx_requestAccounts.
type stacksAddressResponse struct {
	Addresses []stacksAddressEntry `json:"addresses"`
}

// Stacks adapts a Stacks wallet transport to the Provider interface.
// Stacks wallets always show their own prompt on an account request, so
// forcePrompt changes nothing here.
type Stacks struct {
	transport Transport
	network   string
	logger    *config.Logger

	mu          sync.Mutex
	nextID      uint64
	accountSubs map[uint64]func([]string)
	unsub       func()
}

// Compile-time interface check
var _ Provider = (*Stacks)(nil)

// NewStacks creates a Stacks provider over the given transport. The
// network name ("mainnet" or "testnet") doubles as the chain identifier.
func NewStacks(transport Transport, network string, logger *config.Logger) *Stacks {
	if logger == nil {
		logger = config.NullLogger()
	}
	if network == "" {
		network = "mainnet"
	}
	return &Stacks{
		transport:   transport,
		network:     network,
		logger:      logger,
		accountSubs: make(map[uint64]func([]string)),
	}
}

// Family reports the chain family this provider serves.
func (s *Stacks) Family() chain.Family {
	return chain.Stacks
}

// Available reports whether a wallet transport is present.
func (s *Stacks) Available() bool {
	return s.transport != nil
}

// RequestAccounts asks the wallet for the active Stacks account.
func (s *Stacks) RequestAccounts(ctx context.Context, forcePrompt bool) (*Session, error) {
	if s.transport == nil {
		return nil, linkerr.WithSuggestion(linkerr.ErrProviderUnavailable, "Install a Stacks-compatible wallet")
	}

	method := "stx_getAddresses"
	if forcePrompt {
		method = "stx_requestAccounts"
	}

	raw, err := s.transport.Request(ctx, method, nil)
	if err != nil {
		return nil, translateRPCError(err)
	}

	var resp stacksAddressResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "wallet returned malformed addresses")
	}
	if len(resp.Addresses) == 0 {
		return nil, linkerr.Wrap(linkerr.ErrProviderUnavailable, "wallet returned no addresses")
	}

	acct := resp.Addresses[0]
	if acct.Address == "" {
		return nil, linkerr.WithDetails(linkerr.ErrInvalidAddress, map[string]string{
			"address": acct.Address,
		})
	}

	s.logger.Debug("stacks session established for %s", chain.ShortAddress(acct.Address))

	return &Session{
		Family:    chain.Stacks,
		Address:   acct.Address,
		PublicKey: acct.PublicKey,
		ChainID:   s.network,
	}, nil
}

// ChainID returns the configured Stacks network name.
func (s *Stacks) ChainID(_ context.Context) (string, error) {
	return s.network, nil
}

// Disconnect revokes the wallet session where the wallet supports it.
func (s *Stacks) Disconnect(ctx context.Context) error {
	if s.transport == nil {
		return nil
	}

	_, err := s.transport.Request(ctx, "stx_signOut", nil)
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
// transport carries at most one listener regardless of observer count.
func (s *Stacks) OnAccountsChanged(fn func(accounts []string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.accountSubs[id] = fn

	if s.unsub == nil && s.transport != nil {
		s.unsub = s.transport.Subscribe("accountsChanged", s.dispatchAccounts)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.accountSubs, id)
			if len(s.accountSubs) == 0 && s.unsub != nil {
				s.unsub()
				s.unsub = nil
			}
		})
	}
}

// OnChainChanged is a no-op for Stacks. The network is fixed per
// configuration, not switched inside the wallet session.
func (s *Stacks) OnChainChanged(_ func(chainID string)) func() {
	return func() {}
}

// dispatchAccounts fans an accountsChanged payload out to observers.
func (s *Stacks) dispatchAccounts(payload json.RawMessage) {
	var resp stacksAddressResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		s.logger.Error("dropping malformed accountsChanged payload: %v", err)
		return
	}

	accounts := make([]string, 0, len(resp.Addresses))
	for _, entry := range resp.Addresses {
		if entry.Address != "" {
			accounts = append(accounts, entry.Address)
		}
	}

	s.mu.Lock()
	subs := make([]func([]string), 0, len(s.accountSubs))
	for _, fn := range s.accountSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(accounts)
	}
}
