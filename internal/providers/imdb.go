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

// IMDBClient fetches episode pages from IMDB by title id. IMDB has no
// public search-by-season/episode API, so this client is only useful
// once an episode's "tt" id is already known — supplied via IDs, a
// static mapping populated from prior enrichment or manual entry. An
// episode absent from IDs is a clean None, not an error (spec §4.4).
type IMDBClient struct {
	*base
	profile Profile
	ids     map[string]string // episode id -> imdb "tt" id
}

// NewIMDBClient builds a client. ids maps canonical episode ids to their
// known IMDB "tt" id.
func NewIMDBClient(fetcher contracts.Fetcher, limiter *ratelimit.Limiter, retryPolicy *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile Profile, ids map[string]string) *IMDBClient {
	return &IMDBClient{base: newBase(string(episode.SourceIMDB), fetcher, limiter, retryPolicy, c, cb, ttl, log), profile: profile, ids: ids}
}

func (c *IMDBClient) Profile() Profile { return c.profile }

func (c *IMDBClient) URLFor(imdbID string) string {
	return fmt.Sprintf("https://www.imdb.com/title/%s/", imdbID)
}

func (c *IMDBClient) FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error) {
	if !c.profile.Available {
		return nil, nil
	}
	imdbID, ok := c.ids[id.String()]
	if !ok || !ValidIMDBID(imdbID) {
		return nil, nil
	}
	body, err := c.fetchURL(ctx, c.URLFor(imdbID), nil)
	if err != nil {
		return nil, err
	}
	html := string(body)
	record := &episode.ProviderRecord{ID: id.String(), Source: episode.SourceIMDB, FetchedAt: time.Now()}
	record.IMDBID = &imdbID
	if title := extractTitleTag(html); title != "" {
		sanitized := Sanitize(title).Value
		record.Title = &sanitized
	}
	record.Validations = map[string]episode.FieldValidation{
		"imdbId": {IsValid: ValidIMDBID(imdbID), Source: episode.SourceIMDB, ValidatedAt: record.FetchedAt},
	}
	return record, nil
}
