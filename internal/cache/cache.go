// Package cache provides the connection cache that lets wallet sessions
// resume without a round trip to the persistence store.
package cache

import (
	"sync"
	"time"

	"github.com/noccbuild/walletlink/internal/chain"
)

// DefaultTTL is the default lifetime of a connection entry.
const DefaultTTL = 5 * time.Minute

// Tier classifies an entry by its age relative to the cache TTL.
type Tier int

// Cache tiers.
const (
	// TierFresh means the entry is younger than half the TTL. Readers may
	// use it without verification.
	TierFresh Tier = iota

	// TierStale means the entry is past half the TTL but still alive.
	// Readers should use it immediately and verify in the background.
	TierStale

	// TierExpired means the entry has reached the TTL and must not be
	// used.
	TierExpired
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierFresh:
		return "fresh"
	case TierStale:
		return "stale"
	case TierExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ConnectionEntry is a cached wallet connection.
type ConnectionEntry struct {
	Family    chain.Family `json:"family"`
	Address   string       `json:"address"`
	PublicKey string       `json:"public_key,omitempty"`
	ChainID   string       `json:"chain_id,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Cache defines connection cache operations. All operations complete
// synchronously.
type Cache interface {
	// Get retrieves the cached connection for a family. An entry at or
	// past the TTL is treated as absent.
	Get(family chain.Family) (*ConnectionEntry, bool, time.Duration)

	// Classify reports the tier for an entry age.
	Classify(age time.Duration) Tier

	// Set stores a connection entry, stamping it with the current time.
	Set(entry ConnectionEntry)

	// Clear removes the entry for a family.
	Clear(family chain.Family)

	// ClearAll removes every entry.
	ClearAll()

	// Size returns the number of live entries.
	Size() int
}

// Compile-time interface check
var _ Cache = (*ConnectionCache)(nil)

// ConnectionCache stores cached connections keyed by chain family.
type ConnectionCache struct {
	mu      sync.RWMutex               `json:"-"`
	ttl     time.Duration              `json:"-"`
	now     func() time.Time           `json:"-"`
	Entries map[string]ConnectionEntry `json:"entries"`
}

// Option configures a ConnectionCache.
type Option func(*ConnectionCache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *ConnectionCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *ConnectionCache) {
		c.now = now
	}
}

// NewConnectionCache creates an empty connection cache.
func NewConnectionCache(opts ...Option) *ConnectionCache {
	c := &ConnectionCache{
		ttl:     DefaultTTL,
		now:     time.Now,
		Entries: make(map[string]ConnectionEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *ConnectionCache) TTL() time.Duration {
	return c.ttl
}

// Get retrieves the cached connection for a family.
// Returns the entry, whether it is still live, and its age. Entries at or
// past the TTL are evicted and reported as absent.
func (c *ConnectionCache) Get(family chain.Family) (*ConnectionEntry, bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.Entries[string(family)]
	if !exists {
		return nil, false, 0
	}

	age := c.now().Sub(entry.UpdatedAt)
	if age >= c.ttl {
		delete(c.Entries, string(family))
		return nil, false, age
	}

	return &entry, true, age
}

// Classify reports the tier for an entry age. An age of exactly half the
// TTL is already stale, and an age of exactly the TTL is expired.
func (c *ConnectionCache) Classify(age time.Duration) Tier {
	switch {
	case age >= c.ttl:
		return TierExpired
	case 2*age >= c.ttl:
		return TierStale
	default:
		return TierFresh
	}
}

// Set stores a connection entry, stamping it with the current time.
func (c *ConnectionCache) Set(entry ConnectionEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.UpdatedAt = c.now()
	c.Entries[string(entry.Family)] = entry
}

// Clear removes the entry for a family.
func (c *ConnectionCache) Clear(family chain.Family) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.Entries, string(family))
}

// ClearAll removes every entry.
func (c *ConnectionCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Entries = make(map[string]ConnectionEntry)
}

// Size returns the number of live entries. Expired entries still waiting
// for eviction are not counted.
func (c *ConnectionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := c.now()
	for _, entry := range c.Entries {
		if now.Sub(entry.UpdatedAt) < c.ttl {
			n++
		}
	}
	return n
}

// Prune removes entries older than the specified duration.
func (c *ConnectionCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := c.now().Add(-maxAge)

	for key, entry := range c.Entries {
		if entry.UpdatedAt.Before(cutoff) {
			delete(c.Entries, key)
			removed++
		}
	}

	return removed
}
