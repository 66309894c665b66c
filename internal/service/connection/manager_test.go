package connection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noccbuild/walletlink/internal/cache"
	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/events"
	"github.com/noccbuild/walletlink/internal/provider"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

func newTestManager(t *testing.T) (*Manager, map[chain.Family]*fakeProvider) {
	t.Helper()

	fakes := map[chain.Family]*fakeProvider{
		chain.Stacks:    newFakeProvider(chain.Stacks),
		chain.Rootstock: newFakeProvider(chain.Rootstock),
	}
	providers := map[chain.Family]provider.Provider{
		chain.Stacks:    fakes[chain.Stacks],
		chain.Rootstock: fakes[chain.Rootstock],
	}

	mgr := NewManager(providers, Deps{
		Cache:   cache.NewConnectionCache(),
		Gateway: &fakeGateway{},
		Bus:     events.NewBus(),
		Auth:    &fakeAuth{userID: "user-1"},
	})
	return mgr, fakes
}

// TestManager_MachinePerFamily tests that each family gets exactly one
// machine for the session.
func TestManager_MachinePerFamily(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t)

	m1, err := mgr.Machine(chain.Stacks)
	require.NoError(t, err)
	m2, err := mgr.Machine(chain.Stacks)
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	m3, err := mgr.Machine(chain.Rootstock)
	require.NoError(t, err)
	assert.NotSame(t, m1, m3)
}

// TestManager_UnknownFamily tests input validation.
func TestManager_UnknownFamily(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t)
	_, err := mgr.Machine(chain.Family("solana"))
	assert.ErrorIs(t, err, linkerr.ErrUnknownFamily)
}

// TestManager_Snapshot tests the read-only state handle.
func TestManager_Snapshot(t *testing.T) {
	t.Parallel()

	mgr, fakes := newTestManager(t)
	fakes[chain.Stacks].session = &provider.Session{Family: chain.Stacks, Address: addrA, ChainID: "mainnet"}

	m, err := mgr.Machine(chain.Stacks)
	require.NoError(t, err)
	_, err = m.Connect(context.Background(), false)
	require.NoError(t, err)

	state, err := mgr.Snapshot(chain.Stacks)
	require.NoError(t, err)
	assert.True(t, state.Connected)
	assert.Equal(t, addrA, state.Address)

	state, err = mgr.Snapshot(chain.Rootstock)
	require.NoError(t, err)
	assert.False(t, state.Connected)
}

// TestManager_Observe tests bus-mediated observation of state changes.
func TestManager_Observe(t *testing.T) {
	t.Parallel()

	mgr, fakes := newTestManager(t)
	fakes[chain.Rootstock].session = &provider.Session{Family: chain.Rootstock, Address: addrB, ChainID: "30"}

	var got []events.Event
	unsub := mgr.Observe(func(e events.Event) { got = append(got, e) })
	defer unsub()

	m, err := mgr.Machine(chain.Rootstock)
	require.NoError(t, err)
	_, err = m.Connect(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, chain.Rootstock, got[0].Family)
	assert.Equal(t, addrB, got[0].Address)
}

// TestManager_StartWiresProviderEvents tests that Start subscribes every
// machine to its provider and Close removes the subscriptions.
func TestManager_StartWiresProviderEvents(t *testing.T) {
	t.Parallel()

	mgr, fakes := newTestManager(t)
	mgr.Start()

	require.Eventually(t, func() bool {
		fakes[chain.Stacks].mu.Lock()
		defer fakes[chain.Stacks].mu.Unlock()
		return fakes[chain.Stacks].accountsFn != nil
	}, time.Second, 10*time.Millisecond)

	// A provider-side switch reaches the machine.
	fakes[chain.Stacks].accountsFn([]string{addrA})

	state, err := mgr.Snapshot(chain.Stacks)
	require.NoError(t, err)
	assert.True(t, state.Connected)
	assert.Equal(t, addrA, state.Address)

	mgr.Close()
}

// TestManager_ReconcileAll tests session resume across families.
func TestManager_ReconcileAll(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t)
	gw := mgr.deps.Gateway.(*fakeGateway)
	gw.record = nil // nothing stored anywhere

	mgr.ReconcileAll(context.Background())

	for _, family := range chain.Families() {
		state, err := mgr.Snapshot(family)
		require.NoError(t, err)
		assert.False(t, state.Connected)
	}
	assert.Equal(t, 2, gw.readCount())
}
