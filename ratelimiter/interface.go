// Package ratelimiter enforces per-model token and request budgets before a
// call leaves the process.
package ratelimiter

import (
	"context"
	"time"
)

// Limiter is consulted by the Manager once per call with the call's
// estimated token cost. The in-memory RateLimiter is the only
// implementation shipped here.
type Limiter interface {
	// TryConsume takes numTokens and one request if both budgets allow it,
	// and takes nothing otherwise.
	TryConsume(numTokens int) bool

	// TimeUntilAvailable estimates the wait before TryConsume(tokens)
	// could succeed. It does not consume anything.
	TimeUntilAvailable(tokens int) time.Duration

	// WaitAndConsume blocks until the tokens can be taken, ctx is done, or
	// maxWait elapses.
	WaitAndConsume(ctx context.Context, tokens int, maxWait time.Duration) error
}
