// Copyright 2025 James Ross
package merge

import (
	"testing"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/quality"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func record(source episode.Source, title string, fetchedAt time.Time) episode.ProviderRecord {
	return episode.ProviderRecord{
		ID:        "tos_s01_e01",
		Source:    source,
		FetchedAt: fetchedAt,
		Title:     strp(title),
	}
}

func TestMergeHighestQualityPicksBestScore(t *testing.T) {
	now := time.Now()
	records := []ScoredRecord{
		{Record: record(episode.SourceTMDB, "TMDB Title", now), Score: quality.Score{Overall: 0.5}},
		{Record: record(episode.SourceMemoryAlpha, "Memory Alpha Title", now), Score: quality.Score{Overall: 0.9}},
	}
	m := New(StrategyHighestQuality)
	unified := m.Merge("tos_s01_e01", records)
	require.Equal(t, "Memory Alpha Title", unified.Record.Title)
	require.Len(t, unified.Decisions, 1)
	require.Equal(t, "title", unified.Decisions[0].Field)
}

func TestMergeLatestWinsPicksMostRecent(t *testing.T) {
	now := time.Now()
	records := []ScoredRecord{
		{Record: record(episode.SourceTMDB, "Old Title", now.Add(-48*time.Hour))},
		{Record: record(episode.SourceMemoryAlpha, "New Title", now)},
	}
	m := New(StrategyLatestWins)
	unified := m.Merge("tos_s01_e01", records)
	require.Equal(t, "New Title", unified.Record.Title)
}

func TestMergeSourcePriorityPrefersMemoryAlpha(t *testing.T) {
	now := time.Now()
	records := []ScoredRecord{
		{Record: record(episode.SourceTMDB, "TMDB Title", now)},
		{Record: record(episode.SourceMemoryAlpha, "Memory Alpha Title", now)},
	}
	m := New(StrategySourcePriority)
	unified := m.Merge("tos_s01_e01", records)
	require.Equal(t, "Memory Alpha Title", unified.Record.Title)
	require.Equal(t, episode.SourceMemoryAlpha, unified.PrimarySource)
}

func TestMergeWithPriorityUnionsListFields(t *testing.T) {
	now := time.Now()
	high := episode.ProviderRecord{ID: "tos_s01_e01", Source: episode.SourceMemoryAlpha, FetchedAt: now, PlotPoints: []string{"a", "b"}}
	low := episode.ProviderRecord{ID: "tos_s01_e01", Source: episode.SourceTMDB, FetchedAt: now, PlotPoints: []string{"b", "c"}}
	m := New(StrategyMergeWithPriority)
	unified := m.Merge("tos_s01_e01", []ScoredRecord{{Record: high}, {Record: low}})
	require.Equal(t, []string{"a", "b", "c"}, unified.Record.PlotPoints)
}

func TestMergeNoDisagreementRecordsNoDecision(t *testing.T) {
	now := time.Now()
	records := []ScoredRecord{
		{Record: record(episode.SourceTMDB, "Same Title", now)},
		{Record: record(episode.SourceMemoryAlpha, "Same Title", now)},
	}
	m := New(StrategyHighestQuality)
	unified := m.Merge("tos_s01_e01", records)
	require.Empty(t, unified.Decisions)
}

func TestMergeConfidenceAndStatusDerivation(t *testing.T) {
	now := time.Now()
	records := []ScoredRecord{{Record: record(episode.SourceTMDB, "Only Title", now)}}
	m := New(StrategyHighestQuality)
	unified := m.Merge("tos_s01_e01", records)
	require.Greater(t, unified.Confidence, 0.0)
	require.Equal(t, episode.StatusForConfidence(unified.Confidence), unified.Status)
}
