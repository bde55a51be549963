// Copyright 2025 James Ross

// Package resolver implements the Metadata Resolver from spec §4.7:
// given an episode id, fan out to every enabled Provider Client
// concurrently (bounded by the number of enabled providers), merge
// whatever Provider Records come back, and return Unified Metadata.
// Grounded on the teacher's internal/worker/worker.go concurrent
// per-priority dispatch loop, adapted from a single worker pulling one
// job at a time to a bounded sync.WaitGroup fan-out over providers.
package resolver

import (
	"context"
	"sync"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/merge"
	"github.com/marcusrbrown/vbs-sub004/internal/providers"
	"github.com/marcusrbrown/vbs-sub004/internal/quality"
)

// Resolver orchestrates provider fan-out and merging for enrich(id).
type Resolver struct {
	clients []providers.Client
	scorer  *quality.Scorer
	merger  *merge.Merger
}

// New builds a Resolver over clients, using scorer for quality scoring
// and merger for conflict resolution.
func New(clients []providers.Client, scorer *quality.Scorer, merger *merge.Merger) *Resolver {
	return &Resolver{clients: clients, scorer: scorer, merger: merger}
}

// providerResult pairs a fetch outcome with the client it came from, so
// errors can be attributed without the collection goroutine racing on a
// shared map.
type providerResult struct {
	record *episode.ProviderRecord
	err    error
}

// Category distinguishes the reasons Enrich can return None, per spec
// §8: a disabled provider set is a different situation from providers
// that ran but came up empty.
type Category string

const (
	// CategoryResolved means Enrich produced Unified Metadata.
	CategoryResolved Category = "resolved"
	// CategoryNoProviders means every provider was disabled/unavailable,
	// so none were even queried.
	CategoryNoProviders Category = "no-providers"
	// CategoryNoData means providers were queried but none returned
	// usable data (all failed or all returned None).
	CategoryNoData Category = "no-data"
)

// Enrich is the enrich(episode-id) operation. It rejects ill-formed ids,
// queries every enabled provider concurrently, and returns nil (None)
// if every provider failed or returned no data — never an error purely
// from provider absence (spec §7: "Resolver tolerates any subset of
// providers failing"). The returned Category distinguishes why a None
// result happened.
func (r *Resolver) Enrich(ctx context.Context, rawID string) (*episode.UnifiedMetadata, Category, error) {
	id, err := episode.Parse(rawID)
	if err != nil {
		return nil, "", err
	}

	enabled := make([]providers.Client, 0, len(r.clients))
	for _, c := range r.clients {
		if c.Profile().Available {
			enabled = append(enabled, c)
		}
	}
	if len(enabled) == 0 {
		return nil, CategoryNoProviders, nil
	}

	results := make([]providerResult, len(enabled))
	var wg sync.WaitGroup
	wg.Add(len(enabled))
	for i, client := range enabled {
		go func(i int, client providers.Client) {
			defer wg.Done()
			record, err := client.FetchEpisode(ctx, id)
			results[i] = providerResult{record: record, err: err}
		}(i, client)
	}
	wg.Wait()

	var scored []merge.ScoredRecord
	for i, res := range results {
		if res.err != nil || res.record == nil {
			continue
		}
		profile := enabled[i].Profile()
		score := r.scorer.Evaluate(*res.record, quality.SourceProfile{
			ConfidenceLevel: profile.ConfidenceLevel,
			Reliability:     profile.Reliability,
		})
		scored = append(scored, merge.ScoredRecord{Record: *res.record, Score: score})
	}

	if len(scored) == 0 {
		return nil, CategoryNoData, nil
	}

	unified := r.merger.Merge(id.String(), scored)
	return &unified, CategoryResolved, nil
}
