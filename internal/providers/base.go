// Copyright 2025 James Ross
package providers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/breaker"
	"github.com/marcusrbrown/vbs-sub004/internal/cache"
	"github.com/marcusrbrown/vbs-sub004/internal/contracts"
	"github.com/marcusrbrown/vbs-sub004/internal/obs"
	"github.com/marcusrbrown/vbs-sub004/internal/ratelimit"
	"github.com/marcusrbrown/vbs-sub004/internal/retry"
	"go.uber.org/zap"
)

// base wires the RateLimiter + Retry Policy + Request Cache + circuit
// breaker around a single external Fetch call, shared by every
// HTTP-backed provider client.
type base struct {
	source  string
	fetcher contracts.Fetcher
	limiter *ratelimit.Limiter
	retry   *retry.Policy
	cache   *cache.Cache
	breaker *breaker.CircuitBreaker
	ttl     time.Duration
	log     *zap.Logger
}

func newBase(source string, fetcher contracts.Fetcher, limiter *ratelimit.Limiter, retryPolicy *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger) *base {
	if log == nil {
		log = zap.NewNop()
	}
	return &base{source: source, fetcher: fetcher, limiter: limiter, retry: retryPolicy, cache: c, breaker: cb, ttl: ttl, log: log}
}

// fetchURL consults the cache, then (on miss) waits on the rate limiter
// and fetches through the retry policy and circuit breaker, classifying
// HTTP status codes per spec §7's error taxonomy.
func (b *base) fetchURL(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	if cached, ok, err := b.cache.Get(ctx, rawURL); err == nil && ok {
		obs.CacheHits.Inc()
		return cached, nil
	} else {
		obs.CacheMisses.Inc()
	}

	if b.breaker != nil && !b.breaker.Allow() {
		return nil, retry.Wrap(fmt.Errorf("%s: circuit open", b.source), retry.CategoryTransient)
	}

	timer := prometheusTimer(b.source)
	defer timer()

	var body []byte
	result := b.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := b.limiter.Acquire(ctx); err != nil {
			return retry.Wrap(err, retry.CategoryCancellation)
		}
		res, err := b.fetcher.Fetch(ctx, rawURL, headers)
		if err != nil {
			if b.breaker != nil {
				b.breaker.Record(false)
			}
			return retry.Wrap(err, retry.CategoryTransient)
		}
		if err := classifyStatus(res.Status); err != nil {
			if b.breaker != nil {
				b.breaker.Record(false)
			}
			return err
		}
		if b.breaker != nil {
			b.breaker.Record(true)
		}
		body = res.Body
		return nil
	})

	if result.LastErr != nil {
		obs.ProviderFetchErrors.WithLabelValues(b.source, string(result.Category)).Inc()
		return nil, result.LastErr
	}

	if err := b.cache.Set(ctx, rawURL, body, b.ttl); err != nil {
		b.log.Warn("cache write failed", zap.String("provider", b.source), zap.Error(err))
	}
	return body, nil
}

func prometheusTimer(providerName string) func() {
	start := time.Now()
	return func() {
		obs.ProviderFetchDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	}
}

// classifyStatus maps an HTTP status to spec §7's error taxonomy: nil
// for success, a transient-classified error for 5xx/429, and a
// permanent-classified error for other 4xx.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429 || status >= 500:
		return retry.Wrap(fmt.Errorf("status %d", status), retry.CategoryTransient)
	case status >= 400:
		return retry.Wrap(fmt.Errorf("status %d", status), retry.CategoryPermanent)
	default:
		return retry.Wrap(fmt.Errorf("unexpected status %d", status), retry.CategoryTransient)
	}
}

var imdbIDPattern = regexp.MustCompile(`^tt\d{7,8}$`)

// ValidIMDBID reports whether id matches IMDB's "tt"-prefixed id format.
func ValidIMDBID(id string) bool {
	return imdbIDPattern.MatchString(id)
}

// ValidURL reports whether raw parses as an absolute http(s) URL.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
