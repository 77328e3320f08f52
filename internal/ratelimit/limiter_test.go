package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketRefill(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewTokenBucket(2, 1)
	b.now = func() time.Time { return now }
	b.lastRefill = now

	_, ok := b.reserve(1)
	assert.True(t, ok)
	_, ok = b.reserve(1)
	assert.True(t, ok)
	wait, ok := b.reserve(1)
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	now = now.Add(1500 * time.Millisecond)
	_, ok = b.reserve(1)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, b.Available(), 0.001)

	now = now.Add(time.Hour)
	assert.InDelta(t, 2, b.Available(), 0.001)
}

func TestLimiterDisabledNeverBlocks(t *testing.T) {
	l := NewLimiter(Config{Enabled: false, RequestsPerMinute: 1, BurstSize: 1})
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}

	assert.Zero(t, l.Stats().TotalRequests)

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Wait(context.Background()))
	assert.Equal(t, Stats{}, nilLimiter.Stats())
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := NewLimiter(Config{Enabled: true, RequestsPerMinute: 1, BurstSize: 1})
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	stats := l.Stats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.BlockedRequests)
	assert.Less(t, stats.AvailableRequests, 1.0)
}
