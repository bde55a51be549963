// Copyright 2025 James Ross
package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/merge"
	"github.com/marcusrbrown/vbs-sub004/internal/providers"
	"github.com/marcusrbrown/vbs-sub004/internal/quality"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	profile providers.Profile
	record  *episode.ProviderRecord
	err     error
}

func (f fakeClient) Profile() providers.Profile { return f.profile }

func (f fakeClient) FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error) {
	return f.record, f.err
}

func strp(s string) *string { return &s }

func TestEnrichRejectsIllFormedID(t *testing.T) {
	r := New(nil, quality.New(), merge.New(merge.StrategyHighestQuality))
	_, _, err := r.Enrich(context.Background(), "not-an-id")
	require.Error(t, err)
}

func TestEnrichReturnsNoneWithNoProvidersCategoryWhenNoProvidersEnabled(t *testing.T) {
	clients := []providers.Client{
		fakeClient{profile: providers.Profile{Source: "memory-alpha", Available: false}},
	}
	r := New(clients, quality.New(), merge.New(merge.StrategyHighestQuality))
	unified, category, err := r.Enrich(context.Background(), "tos_s01_e01")
	require.NoError(t, err)
	require.Nil(t, unified)
	require.Equal(t, CategoryNoProviders, category)
}

func TestEnrichReturnsNoneWithNoDataCategoryWhenAllProvidersFail(t *testing.T) {
	clients := []providers.Client{
		fakeClient{profile: providers.Profile{Source: "memory-alpha", Available: true}, err: errors.New("boom")},
		fakeClient{profile: providers.Profile{Source: "tmdb", Available: true}, record: nil},
	}
	r := New(clients, quality.New(), merge.New(merge.StrategyHighestQuality))
	unified, category, err := r.Enrich(context.Background(), "tos_s01_e01")
	require.NoError(t, err)
	require.Nil(t, unified)
	require.Equal(t, CategoryNoData, category)
}

func TestEnrichMergesPartialResultsFromSubsetOfProviders(t *testing.T) {
	now := time.Now()
	clients := []providers.Client{
		fakeClient{
			profile: providers.Profile{Source: "memory-alpha", Available: true, ConfidenceLevel: 0.9},
			record: &episode.ProviderRecord{
				ID:        "tos_s01_e01",
				Source:    episode.SourceMemoryAlpha,
				FetchedAt: now,
				Title:     strp("The Man Trap"),
			},
		},
		fakeClient{profile: providers.Profile{Source: "tmdb", Available: true}, err: errors.New("timeout")},
	}
	r := New(clients, quality.New(), merge.New(merge.StrategyHighestQuality))

	unified, category, err := r.Enrich(context.Background(), "tos_s01_e01")
	require.NoError(t, err)
	require.NotNil(t, unified)
	require.Equal(t, CategoryResolved, category)
	require.Equal(t, "The Man Trap", unified.Record.Title)
	require.Equal(t, episode.SourceMemoryAlpha, unified.PrimarySource)
}
