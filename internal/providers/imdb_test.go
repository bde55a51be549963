// Copyright 2025 James Ross
package providers

import (
	"context"
	"testing"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/breaker"
	"github.com/marcusrbrown/vbs-sub004/internal/cache"
	"github.com/marcusrbrown/vbs-sub004/internal/contracts"
	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/persistence"
	"github.com/marcusrbrown/vbs-sub004/internal/ratelimit"
	"github.com/marcusrbrown/vbs-sub004/internal/retry"
	"github.com/stretchr/testify/require"
)

func newTestIMDBClient(fetcher contracts.Fetcher, ids map[string]string) *IMDBClient {
	return NewIMDBClient(
		fetcher,
		ratelimit.New(1000, 1000),
		retry.New(3, time.Millisecond, 5*time.Millisecond, 2, 0),
		cache.New(persistence.NewMemoryStore()),
		breaker.New(time.Minute, time.Second, 0.5, 100),
		time.Hour,
		nil,
		Profile{Source: episode.SourceIMDB, Available: true},
		ids,
	)
}

func TestIMDBFetchEpisodeReturnsNilWhenIDUnknown(t *testing.T) {
	id := mustParse(t, "tos_s01_e01")
	c := newTestIMDBClient(&scriptedFetcher{}, map[string]string{})

	record, err := c.FetchEpisode(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestIMDBFetchEpisodeReturnsNilWhenUnavailable(t *testing.T) {
	id := mustParse(t, "tos_s01_e01")
	c := newTestIMDBClient(&scriptedFetcher{}, map[string]string{id.String(): "tt0708412"})
	c.profile = Profile{Source: episode.SourceIMDB, Available: false}

	record, err := c.FetchEpisode(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestIMDBFetchEpisodeParsesTitleFromPage(t *testing.T) {
	id := mustParse(t, "tos_s01_e01")
	fetcher := &scriptedFetcher{responses: []contracts.FetchResult{
		{Status: 200, Body: []byte("<html><head><title>The Man Trap - IMDb</title></head></html>")},
	}}
	c := newTestIMDBClient(fetcher, map[string]string{id.String(): "tt0708412"})

	record, err := c.FetchEpisode(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "The Man Trap - IMDb", *record.Title)
	require.Equal(t, "tt0708412", *record.IMDBID)
	require.True(t, record.Validations["imdbId"].IsValid)
}

func TestIMDBFetchEpisodeSkipsMalformedID(t *testing.T) {
	id := mustParse(t, "tos_s01_e01")
	c := newTestIMDBClient(&scriptedFetcher{}, map[string]string{id.String(): "not-an-imdb-id"})

	record, err := c.FetchEpisode(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, record)
}
