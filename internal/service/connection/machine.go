package connection

import (
	"context"
	"sync"
	"time"

	"github.com/noccbuild/walletlink/internal/cache"
	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	"github.com/noccbuild/walletlink/internal/events"
	"github.com/noccbuild/walletlink/internal/metrics"
	"github.com/noccbuild/walletlink/internal/provider"
	"github.com/noccbuild/walletlink/internal/store"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// backgroundOpTimeout bounds store writes that run off the caller's
// request path.
const backgroundOpTimeout = 10 * time.Second

// Deps are the collaborators a Machine drives.
type Deps struct {
	Provider provider.Provider
	Cache    cache.Cache
	Gateway  store.Gateway // nil disables persistence
	Bus      events.Bus
	Auth     AuthProvider
	Logger   *config.Logger
	Now      func() time.Time
}

// Machine is the wallet connection state machine for one chain family.
// State mutation is serialized under a mutex; provider and store calls
// happen outside it. A generation counter orders async completions:
// every committed mutation bumps the generation, and a completion that
// captured an older generation is discarded. The cache writes, store
// writes and broadcasts that follow a commit run through sideEffects,
// which applies them in commit order and drops a batch once a newer
// generation's batch has gone out.
type Machine struct {
	family chain.Family
	deps   Deps

	mu    sync.Mutex
	phase Phase
	state State
	gen   uint64

	sideMu  sync.Mutex
	sideGen uint64
}

// NewMachine creates a machine for one chain family.
func NewMachine(family chain.Family, deps Deps) *Machine {
	if deps.Logger == nil {
		deps.Logger = config.NullLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Machine{
		family: family,
		deps:   deps,
		state:  State{Family: family},
	}
}

// Family returns the chain family this machine serves.
func (m *Machine) Family() chain.Family {
	return m.family
}

// State returns the current connection snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Generation returns the mutation counter.
func (m *Machine) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Start wires the machine to its provider's event streams. The returned
// stop function removes the subscriptions and is safe to call more than
// once.
func (m *Machine) Start() func() {
	unsubAccounts := m.deps.Provider.OnAccountsChanged(m.HandleAccountsChanged)
	unsubChain := m.deps.Provider.OnChainChanged(m.HandleChainChanged)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubAccounts()
			unsubChain()
		})
	}
}

// Connect establishes a wallet connection. An application user must be
// signed in before any wallet prompt is shown. Reconnecting while already
// connected disconnects first so the wallet surfaces its account picker
// again. A declined prompt returns the cancelled outcome with no state
// change and no broadcast.
func (m *Machine) Connect(ctx context.Context, forcePrompt bool) (State, error) {
	userID, err := m.deps.Auth.CurrentUser(ctx)
	if err != nil {
		return m.State(), err
	}

	if !m.deps.Provider.Available() {
		return m.State(), linkerr.WithSuggestion(linkerr.ErrProviderUnavailable,
			"Install a "+m.family.DisplayName()+" wallet")
	}

	m.mu.Lock()
	wasConnected := m.state.Connected
	m.gen++
	startGen := m.gen
	m.phase = PhaseConnecting
	m.mu.Unlock()

	if wasConnected {
		if err := m.deps.Provider.Disconnect(ctx); err != nil {
			m.deps.Logger.Debug("pre-connect disconnect for %s: %v", m.family, err)
		}
	}

	session, err := m.deps.Provider.RequestAccounts(ctx, forcePrompt || wasConnected)
	metrics.Global.RecordConnect(err)
	if err != nil {
		m.mu.Lock()
		if m.gen == startGen {
			m.phase = PhaseDisconnected
			m.state = State{Family: m.family}
		}
		snapshot := m.state
		m.mu.Unlock()

		if linkerr.IsCancelled(err) {
			m.deps.Logger.Info("%s connect cancelled by user", m.family)
		} else {
			m.deps.Logger.Error("%s connect failed: %v", m.family, err)
		}
		return snapshot, err
	}

	m.mu.Lock()
	if m.gen != startGen {
		// Another mutation committed while the prompt was open. That
		// result is newer; this one is discarded.
		snapshot := m.state
		m.mu.Unlock()
		m.deps.Logger.Debug("discarding stale %s connect result for %s",
			m.family, chain.ShortAddress(session.Address))
		return snapshot, nil
	}
	m.gen++
	m.state = State{
		Family:     m.family,
		Address:    session.Address,
		PublicKey:  session.PublicKey,
		ChainID:    session.ChainID,
		Connected:  true,
		VerifiedAt: m.deps.Now(),
	}
	m.phase = PhaseConnected
	snapshot := m.state
	committed := m.gen
	m.mu.Unlock()

	m.deps.Logger.Info("%s connected as %s", m.family, chain.ShortAddress(snapshot.Address))

	m.sideEffects(committed, func() {
		m.writeCache(snapshot)
		m.persist(ctx, userID, snapshot)
		m.broadcast(snapshot)
	})
	return snapshot, nil
}

// Disconnect tears the connection down. Disconnecting an already
// disconnected machine is a no-op with no write and no broadcast.
func (m *Machine) Disconnect(ctx context.Context) (State, error) {
	m.mu.Lock()
	if !m.state.Connected && m.phase == PhaseDisconnected {
		snapshot := m.state
		m.mu.Unlock()
		return snapshot, nil
	}
	lastAddress := m.state.Address
	m.gen++
	m.phase = PhaseDisconnecting
	m.mu.Unlock()

	if err := m.deps.Provider.Disconnect(ctx); err != nil {
		m.deps.Logger.Debug("provider disconnect for %s: %v", m.family, err)
	}

	m.mu.Lock()
	m.gen++
	m.state = State{Family: m.family}
	m.phase = PhaseDisconnected
	snapshot := m.state
	committed := m.gen
	m.mu.Unlock()

	m.deps.Logger.Info("%s disconnected", m.family)

	m.sideEffects(committed, func() {
		m.deps.Cache.Clear(m.family)
		if userID, err := m.deps.Auth.CurrentUser(ctx); err == nil {
			m.persist(ctx, userID, State{Family: m.family, Address: lastAddress})
		}
		m.broadcast(snapshot)
	})
	return snapshot, nil
}

// Reconcile resumes a prior session. A fresh cache entry is applied
// without touching the store. A stale entry is applied immediately and
// verified against the store in the background. A miss falls back to an
// authoritative store read; any failure there leaves the machine
// disconnected without error.
func (m *Machine) Reconcile(ctx context.Context) (State, error) {
	entry, ok, age := m.deps.Cache.Get(m.family)
	if ok {
		snapshot := m.applyEntry(entry)
		if m.deps.Cache.Classify(age) == cache.TierFresh {
			return snapshot, nil
		}
		go m.verify(context.WithoutCancel(ctx))
		return snapshot, nil
	}

	userID, err := m.deps.Auth.CurrentUser(ctx)
	if err != nil {
		return m.State(), nil
	}
	if m.deps.Gateway == nil {
		return m.State(), nil
	}

	rec, err := m.deps.Gateway.ReadConnection(ctx, userID, m.family)
	if err != nil {
		if !linkerr.Is(err, linkerr.ErrNotFound) {
			m.deps.Logger.Error("reconcile store read for %s: %v", m.family, err)
		}
		return m.State(), nil
	}
	if !rec.Connected || rec.Address == "" {
		return m.State(), nil
	}

	return m.applyRecord(rec), nil
}

// HandleAccountsChanged reacts to the wallet switching or dropping
// accounts. An empty account list is a wallet-side disconnect: local
// state and cache are cleared without writing the store, since the change
// did not originate with this user action.
func (m *Machine) HandleAccountsChanged(accounts []string) {
	if len(accounts) == 0 || accounts[0] == "" {
		m.mu.Lock()
		if !m.state.Connected {
			m.mu.Unlock()
			return
		}
		m.gen++
		m.state = State{Family: m.family}
		m.phase = PhaseDisconnected
		snapshot := m.state
		committed := m.gen
		m.mu.Unlock()

		m.deps.Logger.Info("%s wallet reported no accounts, disconnecting", m.family)
		m.sideEffects(committed, func() {
			m.deps.Cache.Clear(m.family)
			m.broadcast(snapshot)
		})
		return
	}

	address := accounts[0]

	m.mu.Lock()
	if m.state.Connected && m.state.Address == address {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.state = State{
		Family:     m.family,
		Address:    address,
		ChainID:    m.state.ChainID,
		Connected:  true,
		VerifiedAt: m.deps.Now(),
	}
	m.phase = PhaseConnected
	snapshot := m.state
	committed := m.gen
	m.mu.Unlock()

	m.deps.Logger.Info("%s account switched to %s", m.family, chain.ShortAddress(address))

	ctx, cancel := context.WithTimeout(context.Background(), backgroundOpTimeout)
	defer cancel()
	m.sideEffects(committed, func() {
		m.writeCache(snapshot)
		if userID, err := m.deps.Auth.CurrentUser(ctx); err == nil {
			m.persist(ctx, userID, snapshot)
		}
		m.broadcast(snapshot)
	})
}

// HandleChainChanged reacts to the wallet switching chains. The new chain
// id is committed and observers are told to refresh chain-dependent
// state. No broader reset happens.
func (m *Machine) HandleChainChanged(chainID string) {
	m.mu.Lock()
	if m.state.ChainID == chainID {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.state.ChainID = chainID
	snapshot := m.state
	committed := m.gen
	m.mu.Unlock()

	m.deps.Logger.Info("%s chain switched to %s", m.family, chainID)

	m.sideEffects(committed, func() {
		if snapshot.Connected {
			m.writeCache(snapshot)
		}

		m.deps.Bus.Publish(events.Event{
			Type:    events.TypeChainChanged,
			Family:  m.family,
			Address: snapshot.Address,
			ChainID: chainID,
			Payload: snapshot,
		})
		m.deps.Bus.Publish(events.Event{
			Type:    events.TypeBalanceNeedsUpdate,
			Family:  m.family,
			Address: snapshot.Address,
			ChainID: chainID,
		})
	})
}

// verify re-reads the store after a stale cache apply and corrects the
// local state if they disagree. A completion that lost to a newer
// mutation is discarded.
func (m *Machine) verify(ctx context.Context) {
	if m.deps.Gateway == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, backgroundOpTimeout)
	defer cancel()

	userID, err := m.deps.Auth.CurrentUser(ctx)
	if err != nil {
		return
	}

	m.mu.Lock()
	startGen := m.gen
	m.mu.Unlock()

	rec, err := m.deps.Gateway.ReadConnection(ctx, userID, m.family)

	m.mu.Lock()
	if m.gen != startGen {
		m.mu.Unlock()
		return
	}

	if err != nil || rec == nil || !rec.Connected || rec.Address == "" {
		if err != nil && !linkerr.Is(err, linkerr.ErrNotFound) {
			m.mu.Unlock()
			m.deps.Logger.Error("verify store read for %s: %v", m.family, err)
			return
		}
		// The store says disconnected; the cached session was wrong.
		m.gen++
		m.state = State{Family: m.family}
		m.phase = PhaseDisconnected
		snapshot := m.state
		committed := m.gen
		m.mu.Unlock()

		m.sideEffects(committed, func() {
			m.deps.Cache.Clear(m.family)
			m.broadcast(snapshot)
		})
		return
	}

	if m.state.Address == rec.Address {
		// Confirmed. Refresh the verification stamp and cache lifetime.
		m.state.VerifiedAt = m.deps.Now()
		snapshot := m.state
		committed := m.gen
		m.mu.Unlock()
		m.sideEffects(committed, func() {
			m.writeCache(snapshot)
		})
		return
	}

	// The store holds a different account. Correct and re-announce.
	m.gen++
	m.state = State{
		Family:     m.family,
		Address:    rec.Address,
		PublicKey:  rec.PublicKey,
		ChainID:    rec.ChainID,
		Connected:  true,
		VerifiedAt: m.deps.Now(),
	}
	m.phase = PhaseConnected
	snapshot := m.state
	committed := m.gen
	m.mu.Unlock()

	m.sideEffects(committed, func() {
		m.writeCache(snapshot)
		m.broadcast(snapshot)
	})
}

// applyEntry commits a cached connection and announces it. The cache
// entry is not rewritten, so its age keeps running.
func (m *Machine) applyEntry(entry *cache.ConnectionEntry) State {
	m.mu.Lock()
	m.gen++
	m.state = State{
		Family:     m.family,
		Address:    entry.Address,
		PublicKey:  entry.PublicKey,
		ChainID:    entry.ChainID,
		Connected:  true,
		VerifiedAt: entry.UpdatedAt,
	}
	m.phase = PhaseConnected
	snapshot := m.state
	committed := m.gen
	m.mu.Unlock()

	m.sideEffects(committed, func() {
		m.broadcast(snapshot)
	})
	return snapshot
}

// applyRecord commits a store record, writes it through to the cache
// and announces it.
func (m *Machine) applyRecord(rec *store.ConnectionRecord) State {
	m.mu.Lock()
	m.gen++
	m.state = State{
		Family:     m.family,
		Address:    rec.Address,
		PublicKey:  rec.PublicKey,
		ChainID:    rec.ChainID,
		Connected:  true,
		VerifiedAt: m.deps.Now(),
	}
	m.phase = PhaseConnected
	snapshot := m.state
	committed := m.gen
	m.mu.Unlock()

	m.sideEffects(committed, func() {
		m.writeCache(snapshot)
		m.broadcast(snapshot)
	})
	return snapshot
}

// sideEffects applies a committed transition's cache write, store write
// and broadcast. Batches run one at a time in commit order, and a batch
// whose generation lost to one already applied is dropped, so the
// durable cache and the last broadcast always agree with the newest
// committed state.
func (m *Machine) sideEffects(gen uint64, fn func()) {
	m.sideMu.Lock()
	defer m.sideMu.Unlock()

	if gen < m.sideGen {
		m.deps.Logger.Debug("dropping side effects for superseded %s generation %d", m.family, gen)
		return
	}
	m.sideGen = gen
	fn()
}

// writeCache writes the snapshot through to the connection cache.
func (m *Machine) writeCache(snapshot State) {
	m.deps.Cache.Set(cache.ConnectionEntry{
		Family:    m.family,
		Address:   snapshot.Address,
		PublicKey: snapshot.PublicKey,
		ChainID:   snapshot.ChainID,
	})
}

// persist writes the snapshot to the store. Failures are logged and
// swallowed; a wallet operation that already succeeded is never blocked
// by the store.
func (m *Machine) persist(ctx context.Context, userID string, snapshot State) {
	if m.deps.Gateway == nil {
		return
	}

	rec := store.ConnectionRecord{
		UserID:    userID,
		Family:    m.family,
		Address:   snapshot.Address,
		PublicKey: snapshot.PublicKey,
		ChainID:   snapshot.ChainID,
		Connected: snapshot.Connected,
	}
	if err := m.deps.Gateway.UpsertConnection(ctx, rec); err != nil {
		m.deps.Logger.Error("persisting %s connection: %v", m.family, err)
	}
}

// broadcast publishes the committed snapshot. Exactly one broadcast per
// committed transition.
func (m *Machine) broadcast(snapshot State) {
	m.deps.Bus.Publish(events.Event{
		Type:    events.TypeWalletStateChanged,
		Family:  m.family,
		Address: snapshot.Address,
		ChainID: snapshot.ChainID,
		Payload: snapshot,
	})
}
