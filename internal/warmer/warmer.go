// Copyright 2025 James Ross

// Package warmer implements the Cache Warmer from spec §4.10: it turns a
// warming strategy into a list of target episode ids from the Catalog,
// then enqueues a cache-warm Job Queue job for each, honoring a minimum
// interval between waves and per-strategy priority deltas. New domain
// logic; priority-delta and stats-counter bookkeeping grounded on the
// teacher's internal/queue/job.go priority field and internal/obs
// counter style.
package warmer

import (
	"sync"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/catalog"
	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/events"
	"github.com/marcusrbrown/vbs-sub004/internal/obs"
	"github.com/marcusrbrown/vbs-sub004/internal/queue"
)

// Strategy selects how target episode ids are computed, per spec §4.10.
type Strategy string

const (
	StrategyPopularEpisodes      Strategy = "popular-episodes"
	StrategyRecentlyWatched      Strategy = "recently-watched"
	StrategySequentialPrediction Strategy = "sequential-prediction"
	StrategyEraBased             Strategy = "era-based"
	StrategyNewContent           Strategy = "new-content"
	StrategyManual               Strategy = "manual"
)

// priorityDelta is added to the default priority for a strategy's jobs,
// per spec §4.10.
var priorityDelta = map[Strategy]int{
	StrategyManual:          1,
	StrategyNewContent:      2,
	StrategyPopularEpisodes: 1,
	StrategyEraBased:        -1,
}

// DefaultMinWaveInterval is spec §4.10's default minimum interval
// between warming waves for a given strategy.
const DefaultMinWaveInterval = 60 * time.Second

// Request parameterizes one warming wave.
type Request struct {
	Strategy      Strategy
	SeriesID      string   // popular-episodes
	EraID         string   // era-based
	AfterID       string   // recently-watched, sequential-prediction
	Count         int      // recently-watched, sequential-prediction, era-based
	NewContentIDs []string // new-content
	ManualID      string   // manual
}

// Enqueuer is the subset of the Job Queue the warmer needs, so it can be
// tested without a running Queue.
type Enqueuer interface {
	AddJob(spec queue.Spec) (string, error)
}

// Stats tracks cumulative warming outcomes, per spec §4.10.
type Stats struct {
	Total        int
	Successful   int
	Failed       int
	AvgDuration  time.Duration
	CacheHitRate float64
	PerStrategy  map[Strategy]int
	LastWarmedAt time.Time
}

// Warmer runs warming waves against a Catalog and an Enqueuer.
type Warmer struct {
	catalog         catalog.Catalog
	queue           Enqueuer
	sink            events.Sink
	defaultPriority int
	minInterval     time.Duration
	now             func() time.Time

	mu        sync.Mutex
	lastWave  map[Strategy]time.Time
	stats     Stats
	durations []time.Duration
}

// New builds a Warmer. minInterval <= 0 falls back to
// DefaultMinWaveInterval.
func New(cat catalog.Catalog, enqueuer Enqueuer, sink events.Sink, defaultPriority int, minInterval time.Duration) *Warmer {
	if minInterval <= 0 {
		minInterval = DefaultMinWaveInterval
	}
	return &Warmer{
		catalog:         cat,
		queue:           enqueuer,
		sink:            sink,
		defaultPriority: defaultPriority,
		minInterval:     minInterval,
		now:             time.Now,
		lastWave:        make(map[Strategy]time.Time),
		stats:           Stats{PerStrategy: make(map[Strategy]int)},
	}
}

// ErrWaveTooSoon indicates the strategy's minimum wave interval hasn't
// elapsed since its last run.
type ErrWaveTooSoon struct {
	Strategy Strategy
	Retry    time.Duration
}

func (e *ErrWaveTooSoon) Error() string {
	return "warmer: wave too soon for " + string(e.Strategy)
}

// Warm runs one warming wave for req, enqueuing a cache-warm job per
// target episode id that isn't already queued.
func (w *Warmer) Warm(req Request) (int, error) {
	start := w.now()

	w.mu.Lock()
	if last, ok := w.lastWave[req.Strategy]; ok {
		if elapsed := start.Sub(last); elapsed < w.minInterval {
			w.mu.Unlock()
			return 0, &ErrWaveTooSoon{Strategy: req.Strategy, Retry: w.minInterval - elapsed}
		}
	}
	w.mu.Unlock()

	targets := w.targetsFor(req)
	priority := w.defaultPriority + priorityDelta[req.Strategy]

	enqueued := 0
	for _, id := range targets {
		_, err := w.queue.AddJob(queue.Spec{
			Kind:       queue.KindCacheWarm,
			EpisodeID:  id,
			Priority:   priority,
			MaxRetries: 1,
		})
		if err != nil {
			if _, duplicate := err.(*queue.ErrDuplicateJob); duplicate {
				continue
			}
			w.recordFailure()
			continue
		}
		enqueued++
	}

	w.recordWave(req.Strategy, enqueued, start)
	return enqueued, nil
}

func (w *Warmer) targetsFor(req Request) []string {
	switch req.Strategy {
	case StrategyPopularEpisodes:
		return w.catalog.PremieresOf(req.SeriesID)
	case StrategyRecentlyWatched, StrategySequentialPrediction:
		id, err := episode.Parse(req.AfterID)
		if err != nil {
			return nil
		}
		n := req.Count
		if n <= 0 {
			n = 3
		}
		return w.catalog.NextEpisodes(id, n)
	case StrategyEraBased:
		return w.eraTargets(req)
	case StrategyNewContent:
		return req.NewContentIDs
	case StrategyManual:
		if req.ManualID == "" {
			return nil
		}
		return []string{req.ManualID}
	default:
		return nil
	}
}

func (w *Warmer) eraTargets(req Request) []string {
	var seriesIDs []string
	for _, era := range w.catalog.Eras() {
		if era.ID == req.EraID {
			seriesIDs = era.Series
			break
		}
	}
	l := req.Count
	if l <= 0 {
		l = 1
	}
	var out []string
	for _, seriesID := range seriesIDs {
		series, ok := w.catalog.Series(seriesID)
		if !ok {
			continue
		}
		count := 0
		for _, season := range series.Seasons {
			for _, id := range season.Episodes {
				if count >= l {
					break
				}
				out = append(out, id)
				count++
			}
			if count >= l {
				break
			}
		}
	}
	return out
}

func (w *Warmer) recordWave(strategy Strategy, enqueued int, start time.Time) {
	duration := w.now().Sub(start)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastWave[strategy] = start
	w.stats.Total += enqueued
	w.stats.Successful += enqueued
	w.stats.PerStrategy[strategy] += enqueued
	w.stats.LastWarmedAt = start
	w.durations = append(w.durations, duration)
	w.stats.AvgDuration = averageOf(w.durations)

	obs.WarmingWaves.WithLabelValues(string(strategy)).Inc()
	if w.sink != nil {
		w.sink.Publish(events.Event{Type: events.WarmerStatsUpdated, Payload: w.stats})
	}
}

func (w *Warmer) recordFailure() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Total++
	w.stats.Failed++
}

// Snapshot returns the current cumulative Stats.
func (w *Warmer) Snapshot() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// UpdateCacheHitRate records the Request Cache's current hit rate into
// Stats, so get-stats reflects whether warming waves are actually
// pre-populating the cache.
func (w *Warmer) UpdateCacheHitRate(rate float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.CacheHitRate = rate
}

func averageOf(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return sum / time.Duration(len(durations))
}
