// Copyright 2025 James Ross

// Package merge implements the Merger / Conflict Resolver from spec
// §4.6: combining N Provider Records per episode into Unified Metadata
// using a configurable resolution strategy. New domain logic; the
// decision-recording style (append an immutable record every time two
// sources disagree) is grounded on the teacher's internal/event-hooks
// event-recording pattern (internal/event-hooks/event-hooks.go records
// every dispatch attempt rather than only the outcome).
package merge

import (
	"fmt"
	"sort"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/quality"
)

// Strategy selects how a field's value is chosen when multiple
// providers supplied it, per spec §4.6.
type Strategy string

const (
	StrategyHighestQuality    Strategy = "highest-quality"
	StrategyLatestWins        Strategy = "latest-wins"
	StrategySourcePriority    Strategy = "source-priority"
	StrategyMergeWithPriority Strategy = "merge-with-priority"
)

// listFields are merged as sequences under merge-with-priority rather
// than picked as a single scalar.
var listFields = map[string]bool{
	"plotPoints": true,
	"guestStars": true,
	"directors":  true,
	"writers":    true,
}

// ScoredRecord pairs a Provider Record with its precomputed Quality
// Score, since the highest-quality strategy needs the overall score and
// callers already have a Scorer configured with provider profiles.
type ScoredRecord struct {
	Record episode.ProviderRecord
	Score  quality.Score
}

// Merger combines Provider Records into Unified Metadata using Strategy.
type Merger struct {
	Strategy Strategy
}

// New returns a Merger using the given strategy.
func New(strategy Strategy) *Merger {
	return &Merger{Strategy: strategy}
}

// Merge computes Unified Metadata for episodeID from records, recording
// a Conflict Resolution Decision for every field where >=2 providers
// disagreed, per spec §4.6.
func (m *Merger) Merge(episodeID string, records []ScoredRecord) episode.UnifiedMetadata {
	out := episode.Record{ID: episodeID}
	validations := make(map[string]episode.FieldValidation)
	var decisions []episode.ConflictResolutionDecision
	sourceContribCounts := make(map[episode.Source]int)

	for _, field := range episode.FieldNames {
		contributors := m.contributorsFor(field, records)
		if len(contributors) == 0 {
			continue
		}
		var chosen ScoredRecord
		if listFields[field] {
			mergedList, winner := m.mergeListField(field, contributors)
			applyListField(&out, field, mergedList)
			chosen = winner
		} else {
			chosen = m.chooseScalar(field, contributors)
			applyScalarField(&out, field, chosen.Record)
		}
		sourceContribCounts[chosen.Record.Source]++
		if v, ok := chosen.Record.Validations[field]; ok {
			validations[field] = v
		} else {
			validations[field] = episode.FieldValidation{IsValid: true, Source: chosen.Record.Source, ValidatedAt: chosen.Record.FetchedAt}
		}
		if len(contributors) >= 2 && fieldsDisagree(field, contributors) {
			decisions = append(decisions, decisionFor(field, contributors, chosen, string(m.Strategy)))
		}
	}

	confidence := confidenceScore(validations)
	primary := primarySource(sourceContribCounts)

	return episode.UnifiedMetadata{
		EpisodeID:     episodeID,
		PrimarySource: primary,
		LastUpdated:   latestFetch(records),
		IsValidated:   confidence >= 0.7,
		Confidence:    confidence,
		Version:       "1",
		Status:        episode.StatusForConfidence(confidence),
		Validations:   validations,
		Decisions:     decisions,
		Record:        out,
	}
}

func (m *Merger) contributorsFor(field string, records []ScoredRecord) []ScoredRecord {
	var out []ScoredRecord
	for _, r := range records {
		if r.Record.Present(field) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Merger) chooseScalar(field string, contributors []ScoredRecord) ScoredRecord {
	switch m.Strategy {
	case StrategyLatestWins:
		best := contributors[0]
		for _, c := range contributors[1:] {
			if c.Record.FetchedAt.After(best.Record.FetchedAt) {
				best = c
			}
		}
		return best
	case StrategySourcePriority:
		best := contributors[0]
		for _, c := range contributors[1:] {
			if episode.PriorityRank(c.Record.Source) < episode.PriorityRank(best.Record.Source) {
				best = c
			}
		}
		return best
	case StrategyMergeWithPriority:
		// scalar fields under merge-with-priority fall back to
		// source-priority, since only list fields are meaningfully mergeable.
		return m.chooseScalarBySourcePriority(contributors)
	default: // StrategyHighestQuality
		best := contributors[0]
		for _, c := range contributors[1:] {
			if c.Score.Overall > best.Score.Overall {
				best = c
			}
		}
		return best
	}
}

func (m *Merger) chooseScalarBySourcePriority(contributors []ScoredRecord) ScoredRecord {
	best := contributors[0]
	for _, c := range contributors[1:] {
		if episode.PriorityRank(c.Record.Source) < episode.PriorityRank(best.Record.Source) {
			best = c
		}
	}
	return best
}

// mergeListField unions a list-valued field across contributors. Under
// merge-with-priority the result preserves the highest-priority
// contributor's order and appends novel items from lower-priority ones;
// every other strategy falls back to selecting a single contributor's
// list (the same contributor chooseScalar would pick).
func (m *Merger) mergeListField(field string, contributors []ScoredRecord) ([]string, ScoredRecord) {
	if m.Strategy != StrategyMergeWithPriority {
		chosen := m.chooseScalar(field, contributors)
		return listValue(field, chosen.Record), chosen
	}

	sorted := make([]ScoredRecord, len(contributors))
	copy(sorted, contributors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return episode.PriorityRank(sorted[i].Record.Source) < episode.PriorityRank(sorted[j].Record.Source)
	})

	seen := make(map[string]bool)
	var merged []string
	for _, c := range sorted {
		for _, item := range listValue(field, c.Record) {
			if !seen[item] {
				seen[item] = true
				merged = append(merged, item)
			}
		}
	}
	return merged, sorted[0]
}

func listValue(field string, r episode.ProviderRecord) []string {
	switch field {
	case "plotPoints":
		return r.PlotPoints
	case "guestStars":
		return r.GuestStars
	case "directors":
		return r.Directors
	case "writers":
		return r.Writers
	default:
		return nil
	}
}

func applyListField(out *episode.Record, field string, values []string) {
	switch field {
	case "plotPoints":
		out.PlotPoints = values
	case "guestStars":
		out.GuestStars = values
	case "directors":
		out.Directors = values
	case "writers":
		out.Writers = values
	}
}

func applyScalarField(out *episode.Record, field string, r episode.ProviderRecord) {
	switch field {
	case "title":
		out.Title = *r.Title
	case "airDate":
		out.AirDate = *r.AirDate
	case "season":
		out.Season = *r.Season
	case "episode":
		out.Episode = *r.Episode
	case "synopsis":
		out.Synopsis = *r.Synopsis
	case "productionCode":
		out.ProductionCode = *r.ProductionCode
	case "tmdbId":
		out.TMDBID = *r.TMDBID
	case "imdbId":
		out.IMDBID = *r.IMDBID
	case "memoryAlphaUrl":
		out.MemoryAlphaURL = *r.MemoryAlphaURL
	case "connections":
		out.Connections = r.Connections
	}
}

func fieldsDisagree(field string, contributors []ScoredRecord) bool {
	values := make(map[string]bool)
	for _, c := range contributors {
		values[fmt.Sprint(rawFieldValue(field, c.Record))] = true
	}
	return len(values) > 1
}

func rawFieldValue(field string, r episode.ProviderRecord) any {
	if listFields[field] {
		return listValue(field, r)
	}
	switch field {
	case "title":
		return *r.Title
	case "airDate":
		return *r.AirDate
	case "season":
		return *r.Season
	case "episode":
		return *r.Episode
	case "synopsis":
		return *r.Synopsis
	case "productionCode":
		return *r.ProductionCode
	case "tmdbId":
		return *r.TMDBID
	case "imdbId":
		return *r.IMDBID
	case "memoryAlphaUrl":
		return *r.MemoryAlphaURL
	case "connections":
		return r.Connections
	default:
		return nil
	}
}

func decisionFor(field string, contributors []ScoredRecord, chosen ScoredRecord, strategy string) episode.ConflictResolutionDecision {
	competing := make([]episode.CompetingValue, 0, len(contributors))
	for _, c := range contributors {
		competing = append(competing, episode.CompetingValue{Source: c.Record.Source, Value: rawFieldValue(field, c.Record)})
	}
	return episode.ConflictResolutionDecision{
		Field:     field,
		Competing: competing,
		Resolved:  rawFieldValue(field, chosen.Record),
		Strategy:  strategy,
	}
}

// confidenceScore is the fraction of expected fields (spec §4.6's
// "expected fields", not every optional field a provider can carry) that
// received a valid resolved value.
func confidenceScore(validations map[string]episode.FieldValidation) float64 {
	if len(episode.ExpectedFieldNames) == 0 {
		return 0
	}
	var resolved int
	for _, field := range episode.ExpectedFieldNames {
		if v, ok := validations[field]; ok && v.IsValid {
			resolved++
		}
	}
	return float64(resolved) / float64(len(episode.ExpectedFieldNames))
}

// primarySource is the source that contributed the plurality of chosen
// field values, ties broken by source priority.
func primarySource(counts map[episode.Source]int) episode.Source {
	var best episode.Source
	bestCount := -1
	for source, count := range counts {
		if count > bestCount || (count == bestCount && episode.PriorityRank(source) < episode.PriorityRank(best)) {
			best, bestCount = source, count
		}
	}
	return best
}

func latestFetch(records []ScoredRecord) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.Record.FetchedAt.After(latest) {
			latest = r.Record.FetchedAt
		}
	}
	return latest
}
