// Package ratelimit spaces outbound requests made by fetchers.
//
// A Limiter enforces a minimum delay between consecutive requests. Each
// fetcher owns its own Limiter; fetchers that must share a budget (several
// feeds on one host, for example) are handed the same instance.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBackoff is used when a server signals throttling without a
// Retry-After value.
const DefaultBackoff = 60 * time.Second

// Limiter allows one request per delay, with an optional backoff window
// set after the server reports throttling.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	delay   time.Duration
	retryAt time.Time
}

// New returns a Limiter allowing one request every delay.
// A delay of zero or less disables spacing.
func New(delay time.Duration) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, 1),
		delay:   delay,
	}
}

// Delay returns the configured minimum gap between requests.
func (l *Limiter) Delay() time.Duration {
	return l.delay
}

// Wait blocks until a request may be made or ctx is done.
// Any backoff set by Backoff is honoured first.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may be made now without waiting.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return l.limiter.Allow()
}

// Backoff pauses all requests for retryAfter. Call it on a 429 or 503
// response. Zero or negative values use DefaultBackoff.
func (l *Limiter) Backoff(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = DefaultBackoff
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if until := time.Now().Add(retryAfter); until.After(l.retryAt) {
		l.retryAt = until
	}
}
