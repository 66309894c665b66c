package connection

import (
	"context"
	"sync"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	"github.com/noccbuild/walletlink/internal/events"
	"github.com/noccbuild/walletlink/internal/provider"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// Manager owns one Machine per chain family for the lifetime of a
// session. Machines are created once and shared; observers read snapshots
// and subscribe to the bus instead of holding the machines themselves.
type Manager struct {
	providers map[chain.Family]provider.Provider
	deps      Deps

	mu       sync.Mutex
	machines map[chain.Family]*Machine
	stops    []func()
	started  bool
}

// NewManager creates a manager over the given providers. The Provider
// field of deps is ignored; each machine gets its family's provider.
func NewManager(providers map[chain.Family]provider.Provider, deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = config.NullLogger()
	}
	return &Manager{
		providers: providers,
		deps:      deps,
		machines:  make(map[chain.Family]*Machine),
	}
}

// Machine returns the machine for a family, creating it on first use.
func (mgr *Manager) Machine(family chain.Family) (*Machine, error) {
	if !family.IsValid() {
		return nil, linkerr.WithDetails(linkerr.ErrUnknownFamily, map[string]string{
			"family": family.String(),
		})
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if m, ok := mgr.machines[family]; ok {
		return m, nil
	}

	prov, ok := mgr.providers[family]
	if !ok {
		return nil, linkerr.WithDetails(linkerr.ErrProviderUnavailable, map[string]string{
			"family": family.String(),
		})
	}

	deps := mgr.deps
	deps.Provider = prov
	m := NewMachine(family, deps)
	mgr.machines[family] = m

	if mgr.started {
		mgr.stops = append(mgr.stops, m.Start())
	}
	return m, nil
}

// Snapshot returns the current state for a family without exposing the
// machine.
func (mgr *Manager) Snapshot(family chain.Family) (State, error) {
	m, err := mgr.Machine(family)
	if err != nil {
		return State{}, err
	}
	return m.State(), nil
}

// Observe registers a handler for wallet state broadcasts. The returned
// function removes the subscription.
func (mgr *Manager) Observe(fn func(events.Event)) func() {
	return mgr.deps.Bus.Subscribe(events.TypeWalletStateChanged, fn)
}

// Start wires every configured family's machine to its provider events.
func (mgr *Manager) Start() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.started {
		return
	}
	mgr.started = true

	for family := range mgr.providers {
		deps := mgr.deps
		deps.Provider = mgr.providers[family]
		if _, ok := mgr.machines[family]; !ok {
			mgr.machines[family] = NewMachine(family, deps)
		}
		mgr.stops = append(mgr.stops, mgr.machines[family].Start())
	}
}

// ReconcileAll resumes prior sessions for every configured family.
func (mgr *Manager) ReconcileAll(ctx context.Context) {
	for family := range mgr.providers {
		m, err := mgr.Machine(family)
		if err != nil {
			continue
		}
		if _, err := m.Reconcile(ctx); err != nil {
			mgr.deps.Logger.Error("reconcile %s: %v", family, err)
		}
	}
}

// Close removes all provider event subscriptions.
func (mgr *Manager) Close() {
	mgr.mu.Lock()
	stops := mgr.stops
	mgr.stops = nil
	mgr.started = false
	mgr.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}
