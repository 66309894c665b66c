package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

func TestMetrics_RecordFetch(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	// Record successful fetch
	m.RecordFetch("stacks", 100*time.Millisecond, nil)
	assert.Equal(t, int64(1), m.FetchesTotal())
	assert.Equal(t, int64(0), m.FetchErrorsTotal())
	assert.Equal(t, int64(1), m.stacksFetches.Load())

	// Record failed fetch
	m.RecordFetch("rootstock", 50*time.Millisecond, linkerr.ErrNetwork)
	assert.Equal(t, int64(2), m.FetchesTotal())
	assert.Equal(t, int64(1), m.FetchErrorsTotal())
	assert.Equal(t, int64(1), m.rootstockFetches.Load())
}

func TestMetrics_RecordConnect(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordConnect(nil)
	m.RecordConnect(linkerr.ErrUserRejected)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.ConnectsTotal)
	assert.Equal(t, int64(1), snap.ConnectsErrors)
}

func TestMetrics_CacheHitRate(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	// No operations
	assert.InDelta(t, 0.0, m.CacheHitRate(), 0.001)

	// 3 hits, 1 miss = 75%
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	assert.InDelta(t, 75.0, m.CacheHitRate(), 0.001)
}

func TestMetrics_FetchLatencyAvg(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	// No fetches
	assert.InDelta(t, 0.0, m.FetchLatencyAvgMs(), 0.001)

	m.RecordFetch("stacks", 100*time.Millisecond, nil)
	m.RecordFetch("stacks", 200*time.Millisecond, nil)

	assert.InDelta(t, 150.0, m.FetchLatencyAvgMs(), 0.001)
}

func TestMetrics_SnapshotAndReset(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordFetch("rootstock", time.Millisecond, nil)
	m.RecordConnect(nil)
	m.RecordCacheHit()

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.FetchesTotal)
	assert.Equal(t, int64(1), snap.ConnectsTotal)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.RootstockFetches)

	m.Reset()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}
