package ltp

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket over bytes/second, reconfigurable at
// runtime (spec §4.6.4: rate, bucket depth, and a wait-vs-would-block
// policy may all change between segments). WaitTillSent selects between
// Wait (cooperative block) and would-block semantics for Allow.
type RateLimiter struct {
	mu            sync.RWMutex
	limiter       *rate.Limiter
	waitTillSent  bool
}

// NewRateLimiter creates a limiter allowing bytesPerSec sustained, with a
// burst of burstBytes.
func NewRateLimiter(bytesPerSec, burstBytes int, waitTillSent bool) *RateLimiter {
	return &RateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(bytesPerSec), burstBytes),
		waitTillSent: waitTillSent,
	}
}

// Reconfigure applies new rate/burst/wait-policy settings; callers apply
// it at the next segment boundary per spec §4.6.4.
func (r *RateLimiter) Reconfigure(bytesPerSec, burstBytes int, waitTillSent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter.SetLimit(rate.Limit(bytesPerSec))
	r.limiter.SetBurst(burstBytes)
	r.waitTillSent = waitTillSent
}

// Admit blocks (if WaitTillSent) or returns ErrWouldBlock immediately
// until n bytes may be sent.
func (r *RateLimiter) Admit(ctx context.Context, n int) error {
	r.mu.RLock()
	lim := r.limiter
	wait := r.waitTillSent
	r.mu.RUnlock()

	if wait {
		return lim.WaitN(ctx, n)
	}
	if !lim.AllowN(time.Now(), n) {
		return ErrWouldBlock
	}
	return nil
}

// ErrWouldBlock is returned by Admit when WaitTillSent is false and the
// bucket has no tokens for the requested size.
var ErrWouldBlock = rateError("ltp: send would block")

type rateError string

func (e rateError) Error() string { return string(e) }
