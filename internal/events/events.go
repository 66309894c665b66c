// Package events provides the in-process event bus that decouples wallet
// state producers from their observers.
package events

import (
	"sync"

	"github.com/noccbuild/walletlink/internal/chain"
)

// Type identifies a class of event.
type Type string

// Event types published on the bus.
const (
	// TypeWalletStateChanged fires after a connection state machine
	// commits a transition.
	TypeWalletStateChanged Type = "wallet_state_changed"

	// TypeChainChanged fires when a provider reports a different active
	// chain.
	TypeChainChanged Type = "chain_changed"

	// TypeBalanceUpdated fires after the synchronizer stores a new
	// balance snapshot.
	TypeBalanceUpdated Type = "balance_updated"

	// TypeBalanceNeedsUpdate fires when an external signal indicates the
	// displayed balance may be out of date. Observers decide whether to
	// refetch.
	TypeBalanceNeedsUpdate Type = "balance_needs_update"

	// TypeConnectorStatusChanged fires after an app connector flow
	// settles.
	TypeConnectorStatusChanged Type = "connector_status_changed"
)

// Event is a single notification delivered to subscribers.
type Event struct {
	Type    Type
	Family  chain.Family
	Address string
	ChainID string
	Payload any
}

// Handler receives events. Handlers run synchronously on the publishing
// goroutine and must not block.
type Handler func(Event)

// Bus delivers events to subscribers. Implementations must be safe for
// concurrent use.
type Bus interface {
	// Publish delivers the event to every current subscriber of its type.
	Publish(Event)

	// Subscribe registers a handler for one event type. The returned
	// function removes the subscription and is safe to call more than
	// once.
	Subscribe(Type, Handler) (unsubscribe func())
}

// memoryBus is the in-process Bus implementation.
type memoryBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Type]map[uint64]Handler
}

// NewBus creates an in-process event bus.
func NewBus() Bus {
	return &memoryBus{
		subs: make(map[Type]map[uint64]Handler),
	}
}

// Publish delivers the event synchronously to subscribers registered at
// the time of the call.
func (b *memoryBus) Publish(evt Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[evt.Type]))
	for _, h := range b.subs[evt.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// Subscribe registers a handler and returns its removal function.
func (b *memoryBus) Subscribe(t Type, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[t] == nil {
		b.subs[t] = make(map[uint64]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[t][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[t], id)
		})
	}
}
