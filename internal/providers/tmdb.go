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

// TMDBSeriesIDs maps a series abbreviation to its TMDB series id, per
// spec §6's bit-level compatibility table.
var TMDBSeriesIDs = map[string]int{
	"tos": 253,
	"tng": 655,
	"ds9": 580,
	"voy": 1855,
	"ent": 314,
	"dis": 67198,
	"pic": 85949,
	"low": 85948,
	"pro": 85950,
	"snw": 114472,
}

type tmdbEpisodeResponse struct {
	Name           string `json:"name"`
	Overview       string `json:"overview"`
	AirDate        string `json:"air_date"`
	EpisodeNumber  int    `json:"episode_number"`
	SeasonNumber   int    `json:"season_number"`
	ProductionCode string `json:"production_code"`
	ID             int    `json:"id"`
	Crew           []struct {
		Job  string `json:"job"`
		Name string `json:"name"`
	} `json:"crew"`
	GuestStars []struct {
		Name string `json:"name"`
	} `json:"guest_stars"`
}

// TMDBClient fetches episode metadata from The Movie Database.
type TMDBClient struct {
	*base
	profile Profile
	apiKey  string
	baseURL string
}

// NewTMDBClient builds a client targeting baseURL (spec §6's standard
// REST convention), requiring apiKey.
func NewTMDBClient(fetcher contracts.Fetcher, limiter *ratelimit.Limiter, retryPolicy *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile Profile, apiKey, baseURL string) *TMDBClient {
	return &TMDBClient{base: newBase(string(episode.SourceTMDB), fetcher, limiter, retryPolicy, c, cb, ttl, log), profile: profile, apiKey: apiKey, baseURL: baseURL}
}

func (c *TMDBClient) Profile() Profile { return c.profile }

// URLFor builds the TMDB REST URL for id using the series-id mapping.
func (c *TMDBClient) URLFor(id episode.ID) (string, bool) {
	seriesID, ok := TMDBSeriesIDs[id.Series]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s/tv/%d/season/%d/episode/%d?api_key=%s", c.baseURL, seriesID, id.Season, id.Episode, c.apiKey), true
}

func (c *TMDBClient) FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error) {
	if !c.profile.Available {
		return nil, nil
	}
	target, ok := c.URLFor(id)
	if !ok {
		return nil, nil // unmapped series: provider has no data
	}
	body, err := c.fetchURL(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	var resp tmdbEpisodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, retry.Wrap(fmt.Errorf("tmdb: parse response: %w", err), retry.CategoryParse)
	}
	return parseTMDBResponse(id, resp), nil
}

func parseTMDBResponse(id episode.ID, resp tmdbEpisodeResponse) *episode.ProviderRecord {
	record := &episode.ProviderRecord{ID: id.String(), Source: episode.SourceTMDB, FetchedAt: time.Now()}
	validations := make(map[string]episode.FieldValidation)

	if resp.Name != "" {
		title := Sanitize(resp.Name).Value
		record.Title = &title
	}
	if resp.Overview != "" {
		synopsis := Sanitize(resp.Overview).Value
		record.Synopsis = &synopsis
	}
	if resp.AirDate != "" {
		airDate := resp.AirDate
		record.AirDate = &airDate
		validations["airDate"] = episode.FieldValidation{IsValid: isISODate(airDate), Source: episode.SourceTMDB, ValidatedAt: record.FetchedAt}
	}
	if resp.SeasonNumber != 0 {
		season := resp.SeasonNumber
		record.Season = &season
	}
	if resp.EpisodeNumber != 0 {
		ep := resp.EpisodeNumber
		record.Episode = &ep
	}
	if resp.ProductionCode != "" {
		pc := resp.ProductionCode
		record.ProductionCode = &pc
	}
	if resp.ID != 0 {
		tmdbID := resp.ID
		record.TMDBID = &tmdbID
	}
	for _, crew := range resp.Crew {
		switch crew.Job {
		case "Director":
			record.Directors = append(record.Directors, crew.Name)
		case "Writer", "Teleplay by", "Story by":
			record.Writers = append(record.Writers, crew.Name)
		}
	}
	for _, guest := range resp.GuestStars {
		record.GuestStars = append(record.GuestStars, guest.Name)
	}
	record.Validations = validations
	return record
}

func isISODate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
