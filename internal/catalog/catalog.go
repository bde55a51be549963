// Copyright 2025 James Ross

// Package catalog provides the read-only Catalog contract (spec §6): the
// list of eras, series, and episodes the rest of the core uses to expand
// season ids, predict next-in-sequence episodes, and validate that an
// episode id refers to something real. The core never mutates the catalog.
package catalog

import "github.com/marcusrbrown/vbs-sub004/internal/episode"

// Era groups series that aired in roughly the same production period, used
// by the Cache Warmer's era-based strategy.
type Era struct {
	ID     string
	Name   string
	Series []string
}

// Series describes one series' seasons.
type Series struct {
	ID      string
	Name    string
	Seasons []Season
}

// Season lists the episode ids that belong to it, in air order.
type Season struct {
	Number   int
	Episodes []string
}

// Catalog is the read-only contract the core depends on.
type Catalog interface {
	// Eras returns all known eras in canonical order.
	Eras() []Era
	// Series returns the series with the given id, if known.
	Series(seriesID string) (Series, bool)
	// EpisodesInSeason returns the ordered episode ids for a series/season,
	// or ok=false if the catalog has no data for that series/season.
	EpisodesInSeason(seriesID string, season int) (ids []string, ok bool)
	// NextEpisodes returns up to n episode ids that air after id within its
	// series, in order. Fewer than n may be returned near the end of a
	// series.
	NextEpisodes(id episode.ID, n int) []string
	// PremieresOf returns the premiere (first episode) of every season of
	// seriesID, used by the popular-episodes warming strategy.
	PremieresOf(seriesID string) []string
}

// Memory is an in-memory Catalog backed by a fixed set of eras.
type Memory struct {
	eras   []Era
	series map[string]Series
}

// NewMemory builds a Memory catalog from a set of eras.
func NewMemory(eras []Era) *Memory {
	m := &Memory{eras: eras, series: make(map[string]Series)}
	for _, era := range eras {
		_ = era
	}
	return m
}

// AddSeries registers a series' season/episode layout. Intended for tests
// and for seeding the catalog at startup from a data file.
func (m *Memory) AddSeries(s Series) {
	m.series[s.ID] = s
}

func (m *Memory) Eras() []Era { return m.eras }

func (m *Memory) Series(seriesID string) (Series, bool) {
	s, ok := m.series[seriesID]
	return s, ok
}

func (m *Memory) EpisodesInSeason(seriesID string, season int) ([]string, bool) {
	s, ok := m.series[seriesID]
	if !ok {
		return nil, false
	}
	for _, sn := range s.Seasons {
		if sn.Number == season {
			out := make([]string, len(sn.Episodes))
			copy(out, sn.Episodes)
			return out, true
		}
	}
	return nil, false
}

func (m *Memory) NextEpisodes(id episode.ID, n int) []string {
	ids, ok := m.EpisodesInSeason(id.Series, id.Season)
	if !ok {
		return nil
	}
	cur := id.String()
	idx := -1
	for i, e := range ids {
		if e == cur {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	out := make([]string, 0, n)
	for i := idx + 1; i < len(ids) && len(out) < n; i++ {
		out = append(out, ids[i])
	}
	if len(out) < n {
		s, ok := m.series[id.Series]
		if ok {
			for _, sn := range s.Seasons {
				if sn.Number <= id.Season {
					continue
				}
				for _, e := range sn.Episodes {
					if len(out) >= n {
						break
					}
					out = append(out, e)
				}
				if len(out) >= n {
					break
				}
			}
		}
	}
	return out
}

func (m *Memory) PremieresOf(seriesID string) []string {
	s, ok := m.series[seriesID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s.Seasons))
	for _, sn := range s.Seasons {
		if len(sn.Episodes) > 0 {
			out = append(out, sn.Episodes[0])
		}
	}
	return out
}
