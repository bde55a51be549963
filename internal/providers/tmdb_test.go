// Copyright 2025 James Ross
package providers

import (
	"testing"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/stretchr/testify/require"
)

func TestParseTMDBResponseMapsCrewRoles(t *testing.T) {
	id := mustParse(t, "tos_s01_e01")
	resp := tmdbEpisodeResponse{
		Name:          "The Man Trap",
		Overview:      "A shapeshifting creature <script>evil()</script>drains salt.",
		AirDate:       "1966-09-08",
		SeasonNumber:  1,
		EpisodeNumber: 1,
		ID:            100,
	}
	resp.Crew = []struct {
		Job  string `json:"job"`
		Name string `json:"name"`
	}{
		{Job: "Director", Name: "Marc Daniels"},
		{Job: "Writer", Name: "George Clayton Johnson"},
	}
	resp.GuestStars = []struct {
		Name string `json:"name"`
	}{{Name: "Jeanne Bal"}}

	record := parseTMDBResponse(id, resp)
	require.Equal(t, "The Man Trap", *record.Title)
	require.Equal(t, "A shapeshifting creature drains salt.", *record.Synopsis)
	require.Equal(t, "1966-09-08", *record.AirDate)
	require.Equal(t, 1, *record.Season)
	require.Equal(t, 1, *record.Episode)
	require.Equal(t, 100, *record.TMDBID)
	require.Equal(t, []string{"Marc Daniels"}, record.Directors)
	require.Equal(t, []string{"George Clayton Johnson"}, record.Writers)
	require.Equal(t, []string{"Jeanne Bal"}, record.GuestStars)
	require.True(t, record.Validations["airDate"].IsValid)
	require.Equal(t, episode.SourceTMDB, record.Source)
}

func TestParseTMDBResponseFlagsInvalidAirDate(t *testing.T) {
	id := mustParse(t, "tos_s01_e01")
	resp := tmdbEpisodeResponse{AirDate: "not-a-date"}
	record := parseTMDBResponse(id, resp)
	require.False(t, record.Validations["airDate"].IsValid)
}
