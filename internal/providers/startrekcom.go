// Copyright 2025 James Ross
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/breaker"
	"github.com/marcusrbrown/vbs-sub004/internal/cache"
	"github.com/marcusrbrown/vbs-sub004/internal/contracts"
	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/ratelimit"
	"github.com/marcusrbrown/vbs-sub004/internal/retry"
	"go.uber.org/zap"
)

// StartrekComClient scrapes the official startrek.com episode guide.
// The spec does not prescribe a bit-level URL convention for this
// source (only TMDB/TrekCore/STAPI/Memory Alpha are pinned), so this
// client uses a conventional series/season/episode path.
type StartrekComClient struct {
	*base
	profile Profile
}

// NewStartrekComClient builds a client.
func NewStartrekComClient(fetcher contracts.Fetcher, limiter *ratelimit.Limiter, retryPolicy *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile Profile) *StartrekComClient {
	return &StartrekComClient{base: newBase(string(episode.SourceStartrekCom), fetcher, limiter, retryPolicy, c, cb, ttl, log), profile: profile}
}

func (c *StartrekComClient) Profile() Profile { return c.profile }

// URLFor builds the startrek.com episode guide URL for id.
func (c *StartrekComClient) URLFor(id episode.ID) string {
	return fmt.Sprintf("https://www.startrek.com/episodes/%s/season-%d/episode-%d", id.Series, id.Season, id.Episode)
}

func (c *StartrekComClient) FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error) {
	if !c.profile.Available {
		return nil, nil
	}
	body, err := c.fetchURL(ctx, c.URLFor(id), nil)
	if err != nil {
		return nil, err
	}
	html := string(body)
	record := &episode.ProviderRecord{ID: id.String(), Source: episode.SourceStartrekCom, FetchedAt: time.Now()}
	if title := extractTitleTag(html); title != "" {
		sanitized := Sanitize(title).Value
		record.Title = &sanitized
	}
	return record, nil
}
