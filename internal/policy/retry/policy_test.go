package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffIsExponential(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	want := []time.Duration{
		300 * time.Millisecond,
		600 * time.Millisecond,
		1200 * time.Millisecond,
		2400 * time.Millisecond,
		4800 * time.Millisecond,
	}
	for i, w := range want {
		require.Equal(t, w, p.Backoff(i+1), "retry %d", i+1)
	}
}

func TestBackoffCapped(t *testing.T) {
	t.Parallel()

	p := New(Config{BackoffFactor: time.Second, MaxBackoff: 3 * time.Second})
	require.Equal(t, 3*time.Second, p.Backoff(4))
	require.Equal(t, 3*time.Second, p.Backoff(40))
}

func TestShouldRetryStatuses(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	for _, code := range []int{429, 500, 502, 503, 504} {
		require.True(t, p.ShouldRetry(http.MethodGet, code, nil, 1), "status %d", code)
	}
	for _, code := range []int{400, 403, 404, 501} {
		require.False(t, p.ShouldRetry(http.MethodGet, code, nil, 1), "status %d", code)
	}
}

func TestShouldRetryCapAndMethods(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	require.Equal(t, 5, p.MaxRetries())
	require.True(t, p.ShouldRetry(http.MethodGet, 503, nil, 5))
	require.False(t, p.ShouldRetry(http.MethodGet, 503, nil, 6))
	require.True(t, p.ShouldRetry(http.MethodPost, 0, errors.New("connection reset"), 1))
	require.False(t, p.ShouldRetry(http.MethodDelete, 503, nil, 1))
	require.False(t, p.ShouldRetry(http.MethodPut, 0, errors.New("connection reset"), 1))
}

func TestShouldRetryIgnoresCancellation(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	require.False(t, p.ShouldRetry(http.MethodGet, 0, fmt.Errorf("visit: %w", context.Canceled), 1))
	require.False(t, p.ShouldRetry(http.MethodGet, 0, context.DeadlineExceeded, 1))
}

func TestNegativeMaxRetriesDisablesRetry(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxRetries: -1})
	require.Equal(t, 0, p.MaxRetries())
	require.False(t, p.ShouldRetry(http.MethodGet, 503, nil, 1))
}

func TestWaitHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxBackoff: 10 * time.Second})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	h := http.Header{}
	h.Set("Retry-After", "4")
	require.Equal(t, 4*time.Second, p.Wait(1, h, now))

	h.Set("Retry-After", "120")
	require.Equal(t, 10*time.Second, p.Wait(1, h, now))

	h.Set("Retry-After", now.Add(7*time.Second).Format(http.TimeFormat))
	require.Equal(t, 7*time.Second, p.Wait(1, h, now))

	h.Set("Retry-After", "garbage")
	require.Equal(t, 300*time.Millisecond, p.Wait(1, h, now))

	require.Equal(t, 600*time.Millisecond, p.Wait(2, nil, now))
}
