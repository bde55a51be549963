// Copyright 2025 James Ross
package providers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
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

// seriesWikiTitles maps a series abbreviation to its Memory Alpha wiki
// title prefix. Unknown series fall back to an uppercased abbreviation.
var seriesWikiTitles = map[string]string{
	"tos": "TOS",
	"tng": "TNG",
	"ds9": "DS9",
	"voy": "VOY",
	"ent": "ENT",
	"dis": "DIS",
	"pic": "PIC",
	"low": "LOW",
	"pro": "PRO",
	"snw": "SNW",
}

var titleHeadingPattern = regexp.MustCompile(`(?is)<h1[^>]*id="firstHeading"[^>]*>(.*?)</h1>`)
var synopsisParaPattern = regexp.MustCompile(`(?is)<p>(.*?)</p>`)

// MemoryAlphaClient fetches episode pages from the Memory Alpha wiki.
type MemoryAlphaClient struct {
	*base
	profile Profile
}

// NewMemoryAlphaClient builds a client using Memory Alpha's wiki URL
// lookup convention (spec §6).
func NewMemoryAlphaClient(fetcher contracts.Fetcher, limiter *ratelimit.Limiter, retryPolicy *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile Profile) *MemoryAlphaClient {
	return &MemoryAlphaClient{base: newBase(string(episode.SourceMemoryAlpha), fetcher, limiter, retryPolicy, c, cb, ttl, log), profile: profile}
}

func (c *MemoryAlphaClient) Profile() Profile { return c.profile }

// URLFor builds the Memory Alpha wiki URL for id, e.g.
// "https://memory-alpha.fandom.com/wiki/TOS_Season_1_Episode_1".
func (c *MemoryAlphaClient) URLFor(id episode.ID) string {
	title := seriesWikiTitles[id.Series]
	if title == "" {
		title = strings.ToUpper(id.Series)
	}
	slug := fmt.Sprintf("%s_Season_%d_Episode_%d", title, id.Season, id.Episode)
	return "https://memory-alpha.fandom.com/wiki/" + url.PathEscape(slug)
}

func (c *MemoryAlphaClient) FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error) {
	if !c.profile.Available {
		return nil, nil
	}
	body, err := c.fetchURL(ctx, c.URLFor(id), nil)
	if err != nil {
		return nil, err
	}
	return parseMemoryAlphaPage(id, body), nil
}

func parseMemoryAlphaPage(id episode.ID, body []byte) *episode.ProviderRecord {
	html := string(body)
	record := &episode.ProviderRecord{ID: id.String(), Source: episode.SourceMemoryAlpha, FetchedAt: time.Now()}

	if m := titleHeadingPattern.FindStringSubmatch(html); m != nil {
		title := Sanitize(m[1]).Value
		title = strings.TrimSpace(title)
		if title != "" {
			record.Title = &title
		}
	}
	if m := synopsisParaPattern.FindStringSubmatch(html); m != nil {
		synopsis := strings.TrimSpace(Sanitize(m[1]).Value)
		if synopsis != "" {
			record.Synopsis = &synopsis
		}
	}
	wikiURL := "https://memory-alpha.fandom.com/wiki/" + url.PathEscape(id.String())
	record.MemoryAlphaURL = &wikiURL
	record.Validations = map[string]episode.FieldValidation{
		"memoryAlphaUrl": {IsValid: ValidURL(wikiURL), Source: episode.SourceMemoryAlpha, ValidatedAt: record.FetchedAt},
	}
	return record
}
