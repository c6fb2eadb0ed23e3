package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrExceedsCapacity is returned when a single request needs more tokens
// than the per-minute budget can ever hold.
var ErrExceedsCapacity = errors.New("request exceeds rate limit capacity")

// RateLimiter enforces a tokens-per-minute and a requests-per-minute budget.
// Each budget is a token bucket that starts full and refills continuously.
// A zero or negative budget means unlimited.
type RateLimiter struct {
	mu       sync.Mutex
	tokens   *rate.Limiter
	requests *rate.Limiter
}

// Ensure RateLimiter implements Limiter.
var _ Limiter = (*RateLimiter)(nil)

// New creates a RateLimiter from per-minute budgets.
func New(tokensPerMinute, requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		tokens:   perMinute(tokensPerMinute),
		requests: perMinute(requestsPerMinute),
	}
}

func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
}

func (rl *RateLimiter) hasCapacity(now time.Time, numTokens int) bool {
	if rl.tokens != nil && rl.tokens.TokensAt(now) < float64(numTokens) {
		return false
	}
	if rl.requests != nil && rl.requests.TokensAt(now) < 1 {
		return false
	}
	return true
}

// TryConsume atomically checks both budgets and consumes from them only if
// both have capacity.
func (rl *RateLimiter) TryConsume(numTokens int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if !rl.hasCapacity(now, numTokens) {
		return false
	}
	if rl.tokens != nil {
		rl.tokens.AllowN(now, numTokens)
	}
	if rl.requests != nil {
		rl.requests.AllowN(now, 1)
	}
	return true
}

// TimeUntilAvailable returns how long until the specified tokens would be
// available. This does not modify state.
func (rl *RateLimiter) TimeUntilAvailable(tokens int) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	return max(waitFor(rl.tokens, now, tokens), waitFor(rl.requests, now, 1))
}

func waitFor(l *rate.Limiter, now time.Time, n int) time.Duration {
	if l == nil {
		return 0
	}
	deficit := float64(n) - l.TokensAt(now)
	if deficit <= 0 {
		return 0
	}
	seconds := deficit / float64(l.Limit())
	return time.Duration(math.Ceil(seconds * float64(time.Second)))
}

// WaitAndConsume waits until tokens are available (up to maxWait), then
// consumes them. If maxWait is 0, there is no limit on how long to wait.
func (rl *RateLimiter) WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error {
	if rl.tokens != nil && tokens > rl.tokens.Burst() {
		return fmt.Errorf("%w: %d tokens (capacity %d)", ErrExceedsCapacity, tokens, rl.tokens.Burst())
	}

	deadline := time.Time{}
	if maxWait > 0 {
		deadline = time.Now().Add(maxWait)
	}

	for {
		if rl.TryConsume(tokens) {
			return nil
		}

		wait := rl.TimeUntilAvailable(tokens)
		if wait <= 0 {
			wait = time.Millisecond
		}
		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			return fmt.Errorf("rate limit wait time %v exceeds max wait %v", wait, maxWait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
