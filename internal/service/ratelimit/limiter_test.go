package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_Burst(t *testing.T) {
	l := New()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("alpaca", 2, 1))
	assert.True(t, l.Allow("alpaca", 2, 1))
	assert.False(t, l.Allow("alpaca", 2, 1))
	assert.True(t, l.Allow("other", 2, 1), "keys are independent")

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("alpaca", 2, 1))
	assert.False(t, l.Allow("alpaca", 2, 1))
}

func TestWait_Refills(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "k", 1, 50))

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "k", 1, 50))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWait_Cancelled(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "k", 1, 0.001))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "k", 1, 0.001)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPerMinute(t *testing.T) {
	c, r := PerMinute(200)
	assert.Equal(t, 200.0, c)
	assert.InDelta(t, 200.0/60, r, 1e-12)

	c, _ = PerMinute(0)
	assert.Equal(t, 1.0, c)
}
