// Copyright 2025 James Ross

// Package ratelimit implements the per-provider token bucket from spec
// §4.1 on top of golang.org/x/time/rate, the same rate limiting library
// the teacher already depends on (internal/event-hooks/webhook.go uses
// rate.NewLimiter to throttle outbound webhook deliveries).
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-provider token bucket. Acquire blocks (cooperatively
// suspends, honoring ctx cancellation) until a token is available;
// TryAcquire is non-blocking. The limiter never fails — it only delays.
type Limiter struct {
	inner *rate.Limiter
}

// New builds a Limiter refilling at requestsPerSecond with the given
// burst capacity.
func New(requestsPerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Acquire blocks until a token is available or ctx is cancelled. On
// cancellation the wait slot is released without consuming a token — this
// is exactly rate.Limiter.Wait's documented behavior.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.inner.Wait(ctx)
}

// TryAcquire attempts to consume a token immediately, returning false
// without blocking if none is available.
func (l *Limiter) TryAcquire() bool {
	return l.inner.Allow()
}

// SetRate adjusts the refill rate and burst size at runtime (used when
// provider configuration changes, e.g. a quota downgrade).
func (l *Limiter) SetRate(requestsPerSecond float64, burst int) {
	l.inner.SetLimit(rate.Limit(requestsPerSecond))
	l.inner.SetBurst(burst)
}

// Reserve returns the duration a caller would need to wait right now for
// a single token, without consuming one. Exposed for callers that want to
// report retry-after without blocking.
func (l *Limiter) Reserve() time.Duration {
	now := time.Now()
	r := l.inner.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	delay := r.DelayFrom(now)
	// Cancelling at the reservation instant returns the token to the
	// bucket even when it was available immediately.
	r.CancelAt(now)
	return delay
}
