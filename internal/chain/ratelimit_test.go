package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRateLimiterAllowsBurstThenBlocks verifies that an endpoint can
// spend its burst immediately and is then throttled.
func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(0.001, 2)

	assert.True(t, limiter.Allow("https://api.hiro.so"))
	assert.True(t, limiter.Allow("https://api.hiro.so"))
	assert.False(t, limiter.Allow("https://api.hiro.so"))
}

// TestRateLimiterIsolatesEndpoints verifies that exhausting one
// endpoint's budget leaves other endpoints unaffected.
func TestRateLimiterIsolatesEndpoints(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(0.001, 1)

	assert.True(t, limiter.Allow("https://api.hiro.so"))
	assert.False(t, limiter.Allow("https://api.hiro.so"))
	assert.True(t, limiter.Allow("https://public-node.rsk.co"))
}

// TestRateLimiterPerMinuteBudget verifies that the per-minute
// constructor produces the equivalent per-second limit.
func TestRateLimiterPerMinuteBudget(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiterPerMinute(60, 1)

	require.True(t, limiter.Allow("host"))

	// 60/minute is one per second, so the next token arrives within
	// roughly a second.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, limiter.Wait(ctx, "host"))
}

// TestRateLimiterWaitHonorsContext verifies that waiting on an
// exhausted bucket aborts when the context is cancelled.
func TestRateLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(0.001, 1)
	require.True(t, limiter.Allow("host"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.Error(t, limiter.Wait(ctx, "host"))
}
