// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
// For production observability, consider integrating with Prometheus or similar.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// Balance fetch metrics
	fetchesTotal      atomic.Int64
	fetchErrorsTotal  atomic.Int64
	fetchLatencyNanos atomic.Int64

	// Wallet connection metrics
	connectsTotal  atomic.Int64
	connectsErrors atomic.Int64

	// Balance cache metrics
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	// Per-family fetches
	stacksFetches    atomic.Int64
	rootstockFetches atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordFetch records a balance fetch with its duration and success status.
func (m *Metrics) RecordFetch(family string, duration time.Duration, err error) {
	m.fetchesTotal.Add(1)
	m.fetchLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.fetchErrorsTotal.Add(1)
	}

	// Track per-family fetches
	switch family {
	case "stacks":
		m.stacksFetches.Add(1)
	case "rootstock":
		m.rootstockFetches.Add(1)
	}
}

// RecordConnect records a wallet connection attempt.
func (m *Metrics) RecordConnect(err error) {
	m.connectsTotal.Add(1)
	if err != nil {
		m.connectsErrors.Add(1)
	}
}

// RecordCacheHit records a balance cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a balance cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	FetchesTotal      int64
	FetchErrorsTotal  int64
	FetchLatencyNanos int64
	ConnectsTotal     int64
	ConnectsErrors    int64
	CacheHits         int64
	CacheMisses       int64
	StacksFetches     int64
	RootstockFetches  int64
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		FetchesTotal:      m.fetchesTotal.Load(),
		FetchErrorsTotal:  m.fetchErrorsTotal.Load(),
		FetchLatencyNanos: m.fetchLatencyNanos.Load(),
		ConnectsTotal:     m.connectsTotal.Load(),
		ConnectsErrors:    m.connectsErrors.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
		StacksFetches:     m.stacksFetches.Load(),
		RootstockFetches:  m.rootstockFetches.Load(),
	}
}

// FetchesTotal returns the total number of balance fetches.
func (m *Metrics) FetchesTotal() int64 {
	return m.fetchesTotal.Load()
}

// FetchErrorsTotal returns the total number of failed balance fetches.
func (m *Metrics) FetchErrorsTotal() int64 {
	return m.fetchErrorsTotal.Load()
}

// FetchLatencyAvgMs returns the average fetch latency in milliseconds.
// Returns 0 if no fetches have been made.
func (m *Metrics) FetchLatencyAvgMs() float64 {
	fetches := m.fetchesTotal.Load()
	if fetches == 0 {
		return 0
	}
	nanos := m.fetchLatencyNanos.Load()
	return float64(nanos) / float64(fetches) / 1e6
}

// CacheHitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no cache operations have occurred.
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.fetchesTotal.Store(0)
	m.fetchErrorsTotal.Store(0)
	m.fetchLatencyNanos.Store(0)
	m.connectsTotal.Store(0)
	m.connectsErrors.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.stacksFetches.Store(0)
	m.rootstockFetches.Store(0)
}
