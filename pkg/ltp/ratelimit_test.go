package ltp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	r := NewRateLimiter(1000, 500, false)
	require.NoError(t, r.Admit(context.Background(), 100))
}

func TestRateLimiterWouldBlockWithoutWait(t *testing.T) {
	r := NewRateLimiter(10, 10, false)
	require.NoError(t, r.Admit(context.Background(), 10)) // drains the burst
	err := r.Admit(context.Background(), 10)
	require.ErrorIs(t, err, ErrWouldBlock)
}

func TestRateLimiterWaitsWhenConfigured(t *testing.T) {
	r := NewRateLimiter(1000, 10, true)
	require.NoError(t, r.Admit(context.Background(), 10))
	start := time.Now()
	require.NoError(t, r.Admit(context.Background(), 10))
	require.Greater(t, time.Since(start), time.Duration(0))
}

func TestRateLimiterReconfigure(t *testing.T) {
	r := NewRateLimiter(10, 10, false)
	require.NoError(t, r.Admit(context.Background(), 10))
	require.ErrorIs(t, r.Admit(context.Background(), 10), ErrWouldBlock)

	r.Reconfigure(1000, 1000, false)
	// The drained bucket is not refilled by Reconfigure; at the new 1000 B/s
	// it holds 600 bytes after 600ms, where the old 10 B/s would give 6.
	time.Sleep(600 * time.Millisecond)
	require.NoError(t, r.Admit(context.Background(), 500))
}
