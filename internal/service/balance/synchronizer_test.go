package balance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/events"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

const testAddress = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

// stubFetcher serves canned balances and counts upstream calls.
type stubFetcher struct {
	family chain.Family

	mu       sync.Mutex
	calls    int
	balances map[string]string
	err      error
	gate     chan struct{}
}

func newStubFetcher(family chain.Family) *stubFetcher {
	return &stubFetcher{
		family:   family,
		balances: map[string]string{"STX": "12.5000", "NOCC": "3.7B"},
	}
}

func (f *stubFetcher) Family() chain.Family { return f.family }

func (f *stubFetcher) Fetch(_ context.Context, _ string) (map[string]string, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(f.balances))
	for k, v := range f.balances {
		out[k] = v
	}
	return out, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *stubFetcher) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// stubClock is a settable time source.
type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// balanceRecorder counts TypeBalanceUpdated publications.
type balanceRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *balanceRecorder) record(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *balanceRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newSyncRig(t *testing.T) (*Synchronizer, *stubFetcher, *stubClock, *balanceRecorder) {
	t.Helper()

	fetcher := newStubFetcher(chain.Stacks)
	clock := newStubClock()
	bus := events.NewBus()
	rec := &balanceRecorder{}
	bus.Subscribe(events.TypeBalanceUpdated, rec.record)

	syncer := NewSynchronizer([]Fetcher{fetcher}, bus, nil, WithClock(clock.Now))
	return syncer, fetcher, clock, rec
}

// TestFetchCachesResult verifies one upstream call serves repeat
// requests inside the TTL.
func TestFetchCachesResult(t *testing.T) {
	t.Parallel()
	syncer, fetcher, clock, rec := newSyncRig(t)

	set, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	assert.Equal(t, "12.5000", set.Balances["STX"])
	assert.Equal(t, "3.7B", set.Balances["NOCC"])
	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, 1, rec.count())

	clock.Advance(4 * time.Minute)
	again, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	assert.Equal(t, set.Balances, again.Balances)
	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, 1, rec.count())
}

// TestFetchExpiredTTLRefetches verifies a set past its TTL is refreshed.
func TestFetchExpiredTTLRefetches(t *testing.T) {
	t.Parallel()
	syncer, fetcher, clock, _ := newSyncRig(t)

	_, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)

	clock.Advance(DefaultTTL + time.Second)
	_, err = syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

// TestFetchDebounceCollapsesForce verifies even forced requests inside
// the debounce window reuse the previous result.
func TestFetchDebounceCollapsesForce(t *testing.T) {
	t.Parallel()
	syncer, fetcher, clock, _ := newSyncRig(t)

	_, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, true)
	require.NoError(t, err)

	clock.Advance(500 * time.Millisecond)
	_, err = syncer.Fetch(context.Background(), chain.Stacks, testAddress, true)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.callCount())

	clock.Advance(DefaultDebounce)
	_, err = syncer.Fetch(context.Background(), chain.Stacks, testAddress, true)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

// TestFetchConcurrentSingleflight verifies simultaneous requests for the
// same address collapse onto one upstream call.
func TestFetchConcurrentSingleflight(t *testing.T) {
	t.Parallel()
	syncer, fetcher, _, _ := newSyncRig(t)
	fetcher.gate = make(chan struct{})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Set, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = syncer.Fetch(context.Background(), chain.Stacks, testAddress, true)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "12.5000", results[i].Balances["STX"])
	}
	assert.Equal(t, 1, fetcher.callCount())
}

// TestFetchErrorServesCached verifies a failed refresh keeps showing the
// last known balances instead of blanking them.
func TestFetchErrorServesCached(t *testing.T) {
	t.Parallel()
	syncer, fetcher, clock, _ := newSyncRig(t)

	set, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)

	fetcher.setError(linkerr.ErrNetwork)
	clock.Advance(DefaultTTL + time.Second)

	again, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	assert.Equal(t, set.Balances, again.Balances)
}

// TestFetchErrorWithoutCacheFails verifies a first fetch with no cached
// fallback reports the failure.
func TestFetchErrorWithoutCacheFails(t *testing.T) {
	t.Parallel()
	syncer, fetcher, _, rec := newSyncRig(t)
	fetcher.setError(linkerr.ErrNetwork)

	_, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrNetwork))
	assert.Zero(t, rec.count())
}

// TestFetchUnknownFamily verifies a family without a fetcher is
// rejected.
func TestFetchUnknownFamily(t *testing.T) {
	t.Parallel()
	syncer, _, _, _ := newSyncRig(t)

	_, err := syncer.Fetch(context.Background(), chain.Rootstock, testAddress, false)
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrUnknownFamily))
}

// TestMarkNeedsUpdateBypassesTTL verifies a flagged address is refetched
// before its TTL runs out.
func TestMarkNeedsUpdateBypassesTTL(t *testing.T) {
	t.Parallel()
	syncer, fetcher, clock, _ := newSyncRig(t)

	_, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)

	syncer.MarkNeedsUpdate(chain.Stacks, testAddress)
	assert.Equal(t, 1, fetcher.callCount())

	clock.Advance(2 * time.Second)
	_, err = syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())

	// The flag clears once the fetch lands.
	clock.Advance(2 * time.Second)
	_, err = syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

// TestRefreshDropsCacheAndFetches verifies Refresh ignores the debounce
// window and replaces the cached set.
func TestRefreshDropsCacheAndFetches(t *testing.T) {
	t.Parallel()
	syncer, fetcher, _, rec := newSyncRig(t)

	_, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.balances = map[string]string{"STX": "99.0000", "NOCC": "0"}
	fetcher.mu.Unlock()

	set, err := syncer.Refresh(context.Background(), chain.Stacks, testAddress)
	require.NoError(t, err)
	assert.Equal(t, "99.0000", set.Balances["STX"])
	assert.Equal(t, 2, fetcher.callCount())
	assert.Equal(t, 2, rec.count())
}

// TestCachedAndForget verifies cached lookup and disconnect cleanup.
func TestCachedAndForget(t *testing.T) {
	t.Parallel()
	syncer, _, _, _ := newSyncRig(t)

	_, ok := syncer.Cached(chain.Stacks, testAddress)
	assert.False(t, ok)

	_, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)

	set, ok := syncer.Cached(chain.Stacks, testAddress)
	require.True(t, ok)
	assert.Equal(t, testAddress, set.Address)

	syncer.Forget(chain.Stacks, testAddress)
	_, ok = syncer.Cached(chain.Stacks, testAddress)
	assert.False(t, ok)
}

// TestStartWiresRefreshHints verifies bus hints flag balances for update
// without fetching.
func TestStartWiresRefreshHints(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher(chain.Stacks)
	clock := newStubClock()
	bus := events.NewBus()
	syncer := NewSynchronizer([]Fetcher{fetcher}, bus, nil, WithClock(clock.Now))

	stop := syncer.Start()
	defer stop()

	_, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)

	bus.Publish(events.Event{
		Type:    events.TypeBalanceNeedsUpdate,
		Family:  chain.Stacks,
		Address: testAddress,
	})
	assert.Equal(t, 1, fetcher.callCount())

	clock.Advance(2 * time.Second)
	_, err = syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())

	// Hints without an address are ignored.
	bus.Publish(events.Event{Type: events.TypeBalanceNeedsUpdate, Family: chain.Stacks})
	clock.Advance(2 * time.Second)
	_, err = syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

// TestSetCloneIsolation verifies handed-out sets do not alias internal
// state.
func TestSetCloneIsolation(t *testing.T) {
	t.Parallel()
	syncer, _, _, _ := newSyncRig(t)

	set, err := syncer.Fetch(context.Background(), chain.Stacks, testAddress, false)
	require.NoError(t, err)
	set.Balances["STX"] = "tampered"

	cached, ok := syncer.Cached(chain.Stacks, testAddress)
	require.True(t, ok)
	assert.Equal(t, "12.5000", cached.Balances["STX"])
}
