// Copyright 2025 James Ross
package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayMonotonicAndClamped(t *testing.T) {
	p := New(5, 10*time.Millisecond, 100*time.Millisecond, 2, 0)
	prev := time.Duration(0)
	for n := 1; n <= 4; n++ {
		d := p.Delay(n)
		if d < prev {
			t.Fatalf("attempt %d delay %v shorter than previous %v", n, d, prev)
		}
		if d > p.MaxDelay {
			t.Fatalf("attempt %d delay %v exceeds max %v", n, d, p.MaxDelay)
		}
		prev = d
	}
}

func TestDelayJitterNeverNegative(t *testing.T) {
	p := New(5, time.Millisecond, 10*time.Millisecond, 2, 50*time.Millisecond)
	for n := 1; n <= 6; n++ {
		if d := p.Delay(n); d < 0 {
			t.Fatalf("attempt %d produced negative delay %v", n, d)
		}
	}
}

func TestDoSucceedsWithoutRetry(t *testing.T) {
	p := New(3, time.Millisecond, 5*time.Millisecond, 2, 0)
	calls := 0
	res := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if res.Attempts != 1 || calls != 1 {
		t.Fatalf("expected a single successful attempt, got %+v (calls=%d)", res, calls)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	p := New(3, time.Millisecond, 5*time.Millisecond, 2, 0)
	calls := 0
	res := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return Wrap(errors.New("temporary"), CategoryTransient)
		}
		return nil
	})
	if res.Attempts != 3 {
		t.Fatalf("expected success on third attempt, got %+v", res)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	p := New(3, time.Millisecond, 5*time.Millisecond, 2, 0)
	calls := 0
	res := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return Wrap(errors.New("bad request"), CategoryValidation)
	})
	if calls != 1 {
		t.Fatalf("expected no retries for a non-retryable error, got %d calls", calls)
	}
	if res.Category != CategoryValidation {
		t.Fatalf("expected category to pass through unchanged, got %s", res.Category)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	p := New(2, time.Millisecond, 5*time.Millisecond, 2, 0)
	calls := 0
	res := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return Wrap(errors.New("down"), CategoryTransient)
	})
	if calls != 3 { // initial attempt + 2 retries
		t.Fatalf("expected 3 attempts (1 + MaxRetries), got %d", calls)
	}
	if res.Category != CategoryExhausted {
		t.Fatalf("expected exhausted category, got %s", res.Category)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	p := New(5, 50*time.Millisecond, 200*time.Millisecond, 2, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res := p.Do(ctx, func(ctx context.Context, attempt int) error {
		return Wrap(errors.New("slow"), CategoryTransient)
	})
	if res.Category != CategoryCancellation {
		t.Fatalf("expected cancellation category, got %s", res.Category)
	}
}

func TestUnclassifiedErrorDefaultsTransient(t *testing.T) {
	p := New(1, time.Millisecond, 5*time.Millisecond, 2, 0)
	calls := 0
	res := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("plain error")
		}
		return nil
	})
	if calls != 2 || res.Attempts != 2 {
		t.Fatalf("expected unclassified error to be retried once, got calls=%d res=%+v", calls, res)
	}
}
