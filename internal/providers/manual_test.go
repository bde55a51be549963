// Copyright 2025 James Ross
package providers

import (
	"context"
	"testing"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/persistence"
	"github.com/stretchr/testify/require"
)

func TestManualClientReturnsNoneWithoutOverride(t *testing.T) {
	c := NewManualClient(persistence.NewMemoryStore(), Profile{Available: true})
	id := mustParse(t, "tos_s01_e01")
	record, err := c.FetchEpisode(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestManualClientReturnsStoredOverride(t *testing.T) {
	store := persistence.NewMemoryStore()
	c := NewManualClient(store, Profile{Available: true})
	id := mustParse(t, "tos_s01_e01")

	title := "Corrected Title"
	require.NoError(t, c.Set(context.Background(), id, episode.ProviderRecord{Title: &title}))

	record, err := c.FetchEpisode(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "Corrected Title", *record.Title)
	require.Equal(t, episode.SourceManual, record.Source)
}

func TestManualClientUnavailableReturnsNone(t *testing.T) {
	c := NewManualClient(persistence.NewMemoryStore(), Profile{Available: false})
	id := mustParse(t, "tos_s01_e01")
	record, err := c.FetchEpisode(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, record)
}
