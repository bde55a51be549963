// Copyright 2025 James Ross
package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/breaker"
	"github.com/marcusrbrown/vbs-sub004/internal/cache"
	"github.com/marcusrbrown/vbs-sub004/internal/contracts"
	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/ratelimit"
	"github.com/marcusrbrown/vbs-sub004/internal/retry"
	"go.uber.org/zap"
)

// TrekCoreClient fetches from TrekCore's per-series subdomain screencap
// galleries, per spec §6's URL convention.
type TrekCoreClient struct {
	*base
	profile Profile
}

// NewTrekCoreClient builds a client.
func NewTrekCoreClient(fetcher contracts.Fetcher, limiter *ratelimit.Limiter, retryPolicy *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile Profile) *TrekCoreClient {
	return &TrekCoreClient{base: newBase(string(episode.SourceTrekCore), fetcher, limiter, retryPolicy, c, cb, ttl, log), profile: profile}
}

func (c *TrekCoreClient) Profile() Profile { return c.profile }

// URLFor builds "<series>.trekcore.com/episodes/season<N>/<series><N>x<EE>.php".
func (c *TrekCoreClient) URLFor(id episode.ID) string {
	series := strings.ToLower(id.Series)
	return fmt.Sprintf("https://%s.trekcore.com/episodes/season%d/%s%dx%02d.php", series, id.Season, series, id.Season, id.Episode)
}

func (c *TrekCoreClient) FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error) {
	if !c.profile.Available {
		return nil, nil
	}
	body, err := c.fetchURL(ctx, c.URLFor(id), nil)
	if err != nil {
		return nil, err
	}
	html := string(body)
	record := &episode.ProviderRecord{ID: id.String(), Source: episode.SourceTrekCore, FetchedAt: time.Now()}
	if title := extractTitleTag(html); title != "" {
		sanitized := Sanitize(title).Value
		record.Title = &sanitized
	}
	return record, nil
}
