// Copyright 2025 James Ross

// Package retry implements the Retry Policy from spec §4.2 on top of
// github.com/cenkalti/backoff/v4 (a direct dependency of AKJUS-bsc-erigon
// in the example pack), adding the retryable/non-retryable error
// classification spec §4.2 and §7 require. It replaces the teacher's
// hand-rolled backoff() helper (internal/worker/worker.go) with the same
// delay shape expressed through a pack-provided library.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Category classifies a failure for retry purposes (spec §7).
type Category string

const (
	CategoryTransient    Category = "transient"
	CategoryPermanent    Category = "permanent"
	CategoryValidation   Category = "validation"
	CategoryParse        Category = "parse"
	CategoryCancellation Category = "cancellation"
	CategoryExhausted    Category = "exhausted"
)

// Classifiable errors carry a Category so the Retry Policy knows whether
// to retry without needing a type switch over every error provider
// clients can produce.
type Classifiable interface {
	error
	Category() Category
}

// ClassifiedError wraps an error with its retry category.
type ClassifiedError struct {
	Err error
	Cat Category
}

func (e *ClassifiedError) Error() string      { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error      { return e.Err }
func (e *ClassifiedError) Category() Category { return e.Cat }

// Wrap annotates err with a retry category.
func Wrap(err error, cat Category) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Err: err, Cat: cat}
}

// classify extracts the retry category from err, defaulting to transient
// for unclassified errors (network hiccups that don't implement
// Classifiable are the common case).
func classify(err error) Category {
	var c Classifiable
	if errors.As(err, &c) {
		return c.Category()
	}
	return CategoryTransient
}

func retryable(cat Category) bool {
	switch cat {
	case CategoryTransient:
		return true
	default:
		return false
	}
}

// Retryable reports whether err's classification permits a retry,
// defaulting unclassified errors to transient (retryable). Used by
// callers that apply their own retry loop (the Job Queue's
// failed->pending transition) rather than Policy.Do.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return retryable(classify(err))
}

// Policy holds the exponential-backoff parameters from spec §4.2.
type Policy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            time.Duration

	// rand is overridable in tests for deterministic jitter.
	rand *rand.Rand
}

// New builds a Policy. Zero values fall back to the spec's defaults.
func New(maxRetries int, initialDelay, maxDelay time.Duration, multiplier float64, jitter time.Duration) *Policy {
	if multiplier <= 0 {
		multiplier = 2
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &Policy{
		MaxRetries:        maxRetries,
		InitialDelay:      initialDelay,
		MaxDelay:          maxDelay,
		BackoffMultiplier: multiplier,
		Jitter:            jitter,
	}
}

// backOff builds the underlying cenkalti/backoff ExponentialBackOff
// configured to produce the spec's delay formula:
//
//	min(maxDelay, initialDelay * multiplier^(n-1)) + uniform(-jitter, +jitter)
func (p *Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.BackoffMultiplier
	b.RandomizationFactor = 0 // jitter is applied separately to match the spec's additive ±jitter
	b.MaxElapsedTime = 0      // attempt counting is bounded by MaxRetries, not elapsed wall time
	b.Reset()
	return b
}

// Delay computes the delay before attempt n (1-indexed), matching spec
// §4.2's formula exactly, with jitter clamped to >= 0.
func (p *Policy) Delay(n int) time.Duration {
	b := p.backOff()
	var d time.Duration
	for i := 0; i < n; i++ {
		d = b.NextBackOff()
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		jitter := time.Duration((randFloat(p.rand)*2 - 1) * float64(p.Jitter))
		d += jitter
	}
	if d < 0 {
		d = 0
	}
	return d
}

func randFloat(r *rand.Rand) float64 {
	if r != nil {
		return r.Float64()
	}
	return rand.Float64()
}

// Result is the outcome of a retried operation.
type Result struct {
	Attempts int
	LastErr  error
	Category Category
}

// Do runs fn, retrying per the policy while the failure is retryable and
// attempts remain. fn should return a Classifiable error (via Wrap) so
// Do can distinguish transient failures from permanent ones; unclassified
// errors are treated as transient. Do returns as soon as fn succeeds, a
// non-retryable error occurs, ctx is cancelled, or retries are exhausted.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) Result {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempt - 1, LastErr: err, Category: CategoryCancellation}
		}
		err := fn(ctx, attempt)
		if err == nil {
			return Result{Attempts: attempt}
		}
		cat := classify(err)
		if !retryable(cat) {
			return Result{Attempts: attempt, LastErr: err, Category: cat}
		}
		if attempt > p.MaxRetries {
			return Result{Attempts: attempt, LastErr: err, Category: CategoryExhausted}
		}
		delay := p.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Attempts: attempt, LastErr: ctx.Err(), Category: CategoryCancellation}
		case <-timer.C:
		}
	}
}
