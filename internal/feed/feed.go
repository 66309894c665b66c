// Package feed watches on-chain activity for connected addresses and
// nudges the balance synchronizer when a transaction lands.
package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	"github.com/noccbuild/walletlink/internal/events"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// Stacks streams address transaction events from a Hiro-style websocket
// API. Each confirmed transaction for a watched address publishes a
// balance refresh hint on the bus.
type Stacks struct {
	url    string
	bus    events.Bus
	logger *config.Logger
}

// NewStacks creates a feed client for the given websocket endpoint.
func NewStacks(url string, bus events.Bus, logger *config.Logger) *Stacks {
	if logger == nil {
		logger = config.NullLogger()
	}
	return &Stacks{url: url, bus: bus, logger: logger}
}

// rpcFrame is the JSON-RPC framing the transaction feed speaks.
type rpcFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// txUpdate is the payload of one address transaction notification.
type txUpdate struct {
	Address  string `json:"address"`
	TxID     string `json:"tx_id"`
	TxStatus string `json:"tx_status"`
}

// subscribeParams asks the feed for one address's transaction events.
type subscribeParams struct {
	Event   string `json:"event"`
	Address string `json:"address"`
}

// Watch subscribes to transaction events for an address until the
// returned stop function runs or the context ends. Stop is idempotent.
// Feed errors after establishment are logged and end the stream; they
// never reach the caller.
func (s *Stacks) Watch(ctx context.Context, address string) (func(), error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrNetwork, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	params, err := json.Marshal(subscribeParams{Event: "address_tx_update", Address: address})
	if err != nil {
		_ = conn.Close()
		return nil, linkerr.WithCause(linkerr.ErrNetwork, err)
	}
	sub := rpcFrame{JSONRPC: "2.0", ID: 1, Method: "subscribe", Params: params}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, linkerr.WithCause(linkerr.ErrNetwork, err)
	}

	watchCtx, cancelCtx := context.WithCancel(ctx)

	// Closing the socket unblocks the read loop.
	go func() {
		<-watchCtx.Done()
		_ = conn.Close()
	}()

	go s.readUpdates(watchCtx, conn, address)

	var once sync.Once
	return func() {
		once.Do(cancelCtx)
	}, nil
}

// readUpdates consumes notifications until the socket closes.
func (s *Stacks) readUpdates(ctx context.Context, conn *websocket.Conn, address string) {
	for {
		var frame rpcFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				s.logger.Error("transaction feed closed: %v", err)
			}
			return
		}
		if frame.Method != "address_tx_update" {
			continue
		}

		var update txUpdate
		if err := json.Unmarshal(frame.Params, &update); err != nil {
			s.logger.Error("dropping malformed transaction update: %v", err)
			continue
		}
		if update.Address != "" && update.Address != address {
			continue
		}
		if !confirmed(update.TxStatus) {
			continue
		}

		s.logger.Debug("confirmed transaction %s for %s", update.TxID, chain.ShortAddress(address))
		s.bus.Publish(events.Event{
			Type:    events.TypeBalanceNeedsUpdate,
			Family:  chain.Stacks,
			Address: address,
		})
	}
}

// confirmed reports whether a transaction status is terminal and
// balance-affecting.
func confirmed(status string) bool {
	return status == "success"
}
