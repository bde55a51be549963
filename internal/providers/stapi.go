// Copyright 2025 James Ross
package providers

import (
	"context"
	"encoding/json"
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

type stapiSearchResponse struct {
	Episodes []struct {
		UID           string `json:"uid"`
		Title         string `json:"title"`
		SeasonNumber  int    `json:"seasonNumber"`
		EpisodeNumber int    `json:"episodeNumber"`
	} `json:"episodes"`
}

type stapiEpisodeResponse struct {
	Episode struct {
		Title                  string   `json:"title"`
		StardateFrom           *float64 `json:"stardateFrom"`
		USAirDate              string   `json:"usAirDate"`
		ProductionSerialNumber string   `json:"productionSerialNumber"`
	} `json:"episode"`
}

// STAPIClient implements the Star Trek API's two-step episode lookup
// (search then fetch-by-uid), per spec §6.
type STAPIClient struct {
	*base
	profile Profile
	baseURL string
}

// NewSTAPIClient builds a client targeting baseURL.
func NewSTAPIClient(fetcher contracts.Fetcher, limiter *ratelimit.Limiter, retryPolicy *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile Profile, baseURL string) *STAPIClient {
	return &STAPIClient{base: newBase(string(episode.SourceSTAPI), fetcher, limiter, retryPolicy, c, cb, ttl, log), profile: profile, baseURL: baseURL}
}

func (c *STAPIClient) Profile() Profile { return c.profile }

func (c *STAPIClient) searchURL(id episode.ID) string {
	return fmt.Sprintf("%s/episode/search?seasonNumberFrom=%d&seasonNumberTo=%d&episodeNumberFrom=%d&episodeNumberTo=%d", c.baseURL, id.Season, id.Season, id.Episode, id.Episode)
}

func (c *STAPIClient) episodeURL(uid string) string {
	return fmt.Sprintf("%s/episode?uid=%s", c.baseURL, uid)
}

func (c *STAPIClient) FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error) {
	if !c.profile.Available {
		return nil, nil
	}

	searchBody, err := c.fetchURL(ctx, c.searchURL(id), nil)
	if err != nil {
		return nil, err
	}
	var search stapiSearchResponse
	if err := json.Unmarshal(searchBody, &search); err != nil {
		return nil, retry.Wrap(fmt.Errorf("stapi: parse search response: %w", err), retry.CategoryParse)
	}
	if len(search.Episodes) == 0 {
		return nil, nil
	}
	uid := search.Episodes[0].UID

	episodeBody, err := c.fetchURL(ctx, c.episodeURL(uid), nil)
	if err != nil {
		return nil, err
	}
	var resp stapiEpisodeResponse
	if err := json.Unmarshal(episodeBody, &resp); err != nil {
		return nil, retry.Wrap(fmt.Errorf("stapi: parse episode response: %w", err), retry.CategoryParse)
	}
	return parseSTAPIResponse(id, resp), nil
}

func parseSTAPIResponse(id episode.ID, resp stapiEpisodeResponse) *episode.ProviderRecord {
	record := &episode.ProviderRecord{ID: id.String(), Source: episode.SourceSTAPI, FetchedAt: time.Now()}
	if resp.Episode.Title != "" {
		title := Sanitize(resp.Episode.Title).Value
		record.Title = &title
	}
	if resp.Episode.USAirDate != "" {
		airDate := resp.Episode.USAirDate
		record.AirDate = &airDate
	}
	if resp.Episode.ProductionSerialNumber != "" {
		pc := resp.Episode.ProductionSerialNumber
		record.ProductionCode = &pc
	}
	return record
}
