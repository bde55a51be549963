// Copyright 2025 James Ross

// Package httpfetch is a reference net/http-backed implementation of
// contracts.Fetcher, wiring the daemon to real provider endpoints. It is
// intentionally thin: no retry, no caching, no rate limiting — those
// live in internal/retry, internal/cache, and internal/ratelimit, which
// wrap any Fetcher including this one.
package httpfetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/contracts"
)

// Client is a contracts.Fetcher backed by a standard http.Client.
type Client struct {
	http      *http.Client
	userAgent string
}

// New builds a Client with the given request timeout. A zero timeout
// falls back to 10 seconds so a hung transport can never block a job
// indefinitely; cancellation still flows through ctx regardless.
func New(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch issues a single GET request. It never retries; callers wrap
// Fetch in a Retry Policy if they want that.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) (contracts.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return contracts.FetchResult{}, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return contracts.FetchResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return contracts.FetchResult{}, err
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	return contracts.FetchResult{
		Status:  resp.StatusCode,
		Headers: respHeaders,
		Body:    body,
	}, nil
}
