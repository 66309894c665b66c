package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	"github.com/noccbuild/walletlink/internal/events"
	"github.com/noccbuild/walletlink/internal/metrics"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// Synchronizer coordinates balance fetches across chain families.
// Concurrent requests for the same address collapse onto one upstream
// call; repeat requests inside the debounce window reuse the previous
// result. A network failure never blanks a balance the user already saw.
type Synchronizer struct {
	fetchers map[chain.Family]Fetcher
	bus      events.Bus
	logger   *config.Logger
	ttl      time.Duration
	debounce time.Duration
	now      func() time.Time

	group singleflight.Group

	mu          sync.Mutex
	sets        map[string]Set
	lastAttempt map[string]time.Time
	needsUpdate map[string]bool
}

// SynchronizerOption configures a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithTTL sets how long a fetched set stays authoritative.
func WithTTL(ttl time.Duration) SynchronizerOption {
	return func(s *Synchronizer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithDebounce sets the request-collapse window.
func WithDebounce(d time.Duration) SynchronizerOption {
	return func(s *Synchronizer) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) SynchronizerOption {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// NewSynchronizer creates a synchronizer over the given fetchers.
func NewSynchronizer(fetchers []Fetcher, bus events.Bus, logger *config.Logger, opts ...SynchronizerOption) *Synchronizer {
	if logger == nil {
		logger = config.NullLogger()
	}

	byFamily := make(map[chain.Family]Fetcher, len(fetchers))
	for _, f := range fetchers {
		byFamily[f.Family()] = f
	}

	s := &Synchronizer{
		fetchers:    byFamily,
		bus:         bus,
		logger:      logger,
		ttl:         DefaultTTL,
		debounce:    DefaultDebounce,
		now:         time.Now,
		sets:        make(map[string]Set),
		lastAttempt: make(map[string]time.Time),
		needsUpdate: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes the synchronizer to refresh hints on the bus. Hints
// only mark balances as needing an update; no fetch happens until a
// caller asks. The returned stop function removes the subscription.
func (s *Synchronizer) Start() func() {
	unsub := s.bus.Subscribe(events.TypeBalanceNeedsUpdate, func(e events.Event) {
		if e.Address == "" {
			return
		}
		s.MarkNeedsUpdate(e.Family, e.Address)
	})

	var once sync.Once
	return func() {
		once.Do(unsub)
	}
}

// Fetch returns the balance set for an address. Without force, a cached
// set younger than the TTL (and not flagged for update) is returned as
// is; inside the debounce window the previous result is reused even when
// it is older.
func (s *Synchronizer) Fetch(ctx context.Context, family chain.Family, address string, force bool) (Set, error) {
	fetcher, ok := s.fetchers[family]
	if !ok {
		return Set{}, linkerr.WithDetails(linkerr.ErrUnknownFamily, map[string]string{
			"family": family.String(),
		})
	}

	key := cacheKey(family, address)

	s.mu.Lock()
	cached, haveCached := s.sets[key]
	flagged := s.needsUpdate[key]
	lastAttempt, attempted := s.lastAttempt[key]
	now := s.now()

	if !force && haveCached {
		if !flagged && now.Sub(cached.FetchedAt) < s.ttl {
			out := cached.Clone()
			s.mu.Unlock()
			metrics.Global.RecordCacheHit()
			return out, nil
		}
	}
	if haveCached && attempted && now.Sub(lastAttempt) < s.debounce {
		// Burst collapse: the previous answer is seconds old.
		out := cached.Clone()
		s.mu.Unlock()
		metrics.Global.RecordCacheHit()
		return out, nil
	}
	s.lastAttempt[key] = now
	s.mu.Unlock()
	metrics.Global.RecordCacheMiss()

	result, err, _ := s.group.Do(key, func() (any, error) {
		return s.fetch(ctx, fetcher, family, address)
	})
	if err != nil {
		if haveCached {
			// Keep showing what the user last saw.
			s.logger.Error("balance fetch for %s failed, serving cached: %v",
				chain.ShortAddress(address), err)
			return cached.Clone(), nil
		}
		return Set{}, err
	}

	return result.(Set), nil
}

// fetch performs the upstream read and commits the result.
func (s *Synchronizer) fetch(ctx context.Context, fetcher Fetcher, family chain.Family, address string) (Set, error) {
	started := time.Now()
	balances, err := fetcher.Fetch(ctx, address)
	metrics.Global.RecordFetch(family.String(), time.Since(started), err)
	if err != nil {
		return Set{}, err
	}

	set := Set{
		Family:    family,
		Address:   address,
		Balances:  balances,
		FetchedAt: s.now(),
	}

	key := cacheKey(family, address)
	s.mu.Lock()
	s.sets[key] = set
	delete(s.needsUpdate, key)
	s.mu.Unlock()

	s.bus.Publish(events.Event{
		Type:    events.TypeBalanceUpdated,
		Family:  family,
		Address: address,
		Payload: set.Clone(),
	})

	return set.Clone(), nil
}

// Refresh drops the cached set and fetches fresh values.
func (s *Synchronizer) Refresh(ctx context.Context, family chain.Family, address string) (Set, error) {
	key := cacheKey(family, address)

	s.mu.Lock()
	delete(s.sets, key)
	delete(s.lastAttempt, key)
	s.mu.Unlock()

	return s.Fetch(ctx, family, address, true)
}

// MarkNeedsUpdate flags an address so the next Fetch bypasses the TTL.
// It performs no network work itself.
func (s *Synchronizer) MarkNeedsUpdate(family chain.Family, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.needsUpdate[cacheKey(family, address)] = true
}

// Cached returns the cached set for an address, if any.
func (s *Synchronizer) Cached(family chain.Family, address string) (Set, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[cacheKey(family, address)]
	if !ok {
		return Set{}, false
	}
	return set.Clone(), true
}

// Forget drops cached state for an address, typically on disconnect.
func (s *Synchronizer) Forget(family chain.Family, address string) {
	key := cacheKey(family, address)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, key)
	delete(s.lastAttempt, key)
	delete(s.needsUpdate, key)
}

func cacheKey(family chain.Family, address string) string {
	return fmt.Sprintf("%s:%s", family, address)
}
