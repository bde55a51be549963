// Copyright 2025 James Ross
package providers

import (
	"testing"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) episode.ID {
	t.Helper()
	id, err := episode.Parse(raw)
	require.NoError(t, err)
	return id
}

func TestTrekCoreURLConvention(t *testing.T) {
	c := &TrekCoreClient{}
	id := mustParse(t, "tos_s01_e01")
	require.Equal(t, "https://tos.trekcore.com/episodes/season1/tos1x01.php", c.URLFor(id))
}

func TestTMDBURLUsesSeriesIDMapping(t *testing.T) {
	c := &TMDBClient{apiKey: "KEY", baseURL: "https://api.themoviedb.org/3"}
	id := mustParse(t, "tng_s03_e01")
	got, ok := c.URLFor(id)
	require.True(t, ok)
	require.Equal(t, "https://api.themoviedb.org/3/tv/655/season/3/episode/1?api_key=KEY", got)
}

func TestTMDBURLUnmappedSeriesFails(t *testing.T) {
	c := &TMDBClient{apiKey: "KEY", baseURL: "https://api.themoviedb.org/3"}
	id := mustParse(t, "xyz_s01_e01")
	_, ok := c.URLFor(id)
	require.False(t, ok)
}

func TestSTAPISearchThenEpisodeURLs(t *testing.T) {
	c := &STAPIClient{baseURL: "https://stapi.co/api/v1/rest"}
	id := mustParse(t, "voy_s01_e01")
	require.Equal(t, "https://stapi.co/api/v1/rest/episode/search?seasonNumberFrom=1&seasonNumberTo=1&episodeNumberFrom=1&episodeNumberTo=1", c.searchURL(id))
	require.Equal(t, "https://stapi.co/api/v1/rest/episode?uid=EP123", c.episodeURL("EP123"))
}

func TestValidIMDBID(t *testing.T) {
	require.True(t, ValidIMDBID("tt0708412"))
	require.False(t, ValidIMDBID("0708412"))
	require.False(t, ValidIMDBID("tt12"))
}

func TestValidURL(t *testing.T) {
	require.True(t, ValidURL("https://example.com/a"))
	require.False(t, ValidURL("not a url"))
	require.False(t, ValidURL("ftp://example.com"))
}
