package balance

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/provider"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// RootstockFetcher reads the native RBTC balance through the wallet's
// JSON-RPC transport.
type RootstockFetcher struct {
	transport provider.Transport
}

var _ Fetcher = (*RootstockFetcher)(nil)

// NewRootstockFetcher creates a Rootstock balance fetcher backed by the
// given transport.
func NewRootstockFetcher(transport provider.Transport) *RootstockFetcher {
	return &RootstockFetcher{transport: transport}
}

// Family reports the chain family this fetcher serves.
func (f *RootstockFetcher) Family() chain.Family {
	return chain.Rootstock
}

// Fetch returns the formatted RBTC balance for address.
func (f *RootstockFetcher) Fetch(ctx context.Context, address string) (map[string]string, error) {
	if f.transport == nil {
		return nil, linkerr.ErrProviderUnavailable
	}

	raw, err := f.transport.Request(ctx, "eth_getBalance", []any{address, "latest"})
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrNetwork, err)
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "malformed balance response")
	}

	amount, err := hexutil.DecodeBig(encoded)
	if err != nil {
		return nil, linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "malformed balance value")
	}

	formatted := chain.FormatAmount(amount, chain.AssetRBTC.Decimals, chain.AssetRBTC.DisplayPlaces)
	return map[string]string{chain.AssetRBTC.Symbol: formatted}, nil
}
