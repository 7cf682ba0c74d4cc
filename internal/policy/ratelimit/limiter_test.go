package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterDisabledNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	require.False(t, l.Enabled())
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://sirup.lkpp.go.id/x"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterSpacesRequests(t *testing.T) {
	t.Parallel()

	// 10 requests per second = 100ms interval, burst 1.
	l := New(Config{RequestsPerSecond: 10, Burst: 1})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://sirup.lkpp.go.id/a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://sirup.lkpp.go.id/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://a.example/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 0.5, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://a.example/1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://a.example/2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limit wait")
}
