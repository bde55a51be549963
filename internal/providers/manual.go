// Copyright 2025 James Ross
package providers

import (
	"context"
	"encoding/json"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/persistence"
)

// ManualClient serves user-submitted corrections stored directly in a
// Store, rather than fetching from an external source. It participates
// in the same uniform fetch-episode operation as every other provider
// so the Resolver and Merger don't need a special case for manual
// overrides — they're just another (typically highest source-priority)
// Provider Record.
type ManualClient struct {
	store   persistence.Store
	profile Profile
}

// NewManualClient builds a client backed by store, under keys
// "manual_override:<episode-id>".
func NewManualClient(store persistence.Store, profile Profile) *ManualClient {
	return &ManualClient{store: store, profile: profile}
}

func (c *ManualClient) Profile() Profile { return c.profile }

func manualKey(id episode.ID) string { return "manual_override:" + id.String() }

func (c *ManualClient) FetchEpisode(ctx context.Context, id episode.ID) (*episode.ProviderRecord, error) {
	if !c.profile.Available {
		return nil, nil
	}
	data, ok, err := c.store.Get(ctx, manualKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var record episode.ProviderRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	record.Source = episode.SourceManual
	return &record, nil
}

// Set stores or replaces a manual override for id.
func (c *ManualClient) Set(ctx context.Context, id episode.ID, record episode.ProviderRecord) error {
	record.ID = id.String()
	record.Source = episode.SourceManual
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, manualKey(id), data, 0)
}
