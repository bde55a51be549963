// Copyright 2025 James Ross

// Package scheduler implements the Scheduler from spec §4.9: it samples
// Device/Network Condition on a ticker, derives a Scheduling Config from
// the sample, and exposes should-dispatch()/next-delay() for the Job
// Queue to consult. It never drives the queue directly. Grounded on the
// teacher's internal/reaper/reaper.go ticker-driven background scan.
package scheduler

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/events"
)

// NetworkClass is the current network connectivity class.
type NetworkClass string

const (
	NetworkWifi     NetworkClass = "wifi"
	NetworkCellular NetworkClass = "cellular"
	NetworkSlow     NetworkClass = "slow"
	NetworkOffline  NetworkClass = "offline"
)

// Condition is a Device/Network Condition sample.
type Condition struct {
	NetworkClass NetworkClass
	Metered      bool
	Charging     bool
	PowerSave    bool
	BatteryLevel float64 // 0..1
}

// changed reports whether c differs from prev by a margin significant
// enough to emit a change event, per spec §4.9 (battery ±0.1).
func (c Condition) changed(prev Condition) bool {
	if c.NetworkClass != prev.NetworkClass ||
		c.Metered != prev.Metered ||
		c.Charging != prev.Charging ||
		c.PowerSave != prev.PowerSave {
		return true
	}
	return math.Abs(c.BatteryLevel-prev.BatteryLevel) >= 0.1
}

// Config is the derived Scheduling Config for a Condition.
type Config struct {
	MaxConcurrent       int
	AvoidPeakHours      bool
	PauseWhileCharging  bool
	PeakHourStart       int // 0-23
	PeakHourEnd         int // 0-23
	LowBatteryThreshold float64
}

// DefaultConfig is the baseline before any Condition-driven adjustment.
var DefaultConfig = Config{
	MaxConcurrent:       3,
	AvoidPeakHours:      false,
	PauseWhileCharging:  false,
	PeakHourStart:       9,
	PeakHourEnd:         17,
	LowBatteryThreshold: 0.2,
}

// deriveConfig applies spec §4.9's condition-driven adjustments to base.
func deriveConfig(base Config, c Condition) Config {
	cfg := base
	switch {
	case c.Metered:
		cfg.AvoidPeakHours = true
	case !c.Charging && c.BatteryLevel < base.LowBatteryThreshold:
		cfg.MaxConcurrent = 1
	}
	if c.PowerSave {
		cfg.MaxConcurrent = maxInt(1, cfg.MaxConcurrent/2)
		cfg.AvoidPeakHours = true
	}
	return cfg
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Sampler produces the current Device/Network Condition. Production
// wiring supplies a platform-specific implementation; tests supply a
// scripted one.
type Sampler func() Condition

// Scheduler continuously samples Condition and derives should-dispatch /
// next-delay for the Job Queue to consult.
type Scheduler struct {
	sample   Sampler
	base     Config
	sink     events.Sink
	interval time.Duration

	mu   sync.Mutex
	cond Condition
	cfg  Config
	now  func() time.Time
}

// New builds a Scheduler sampling Condition every interval (default 30s
// if interval <= 0).
func New(sample Sampler, base Config, sink events.Sink, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &Scheduler{
		sample:   sample,
		base:     base,
		sink:     sink,
		interval: interval,
		now:      time.Now,
	}
	initial := sample()
	s.cond = initial
	s.cfg = deriveConfig(base, initial)
	return s
}

// Run samples Condition on a ticker until ctx is cancelled, publishing a
// change event whenever the sample differs significantly from the last.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Scheduler) sampleOnce() {
	next := s.sample()

	s.mu.Lock()
	prev := s.cond
	changed := next.changed(prev)
	s.cond = next
	s.cfg = deriveConfig(s.base, next)
	s.mu.Unlock()

	if changed && s.sink != nil {
		s.sink.Publish(events.Event{Type: events.SchedulerConditionChanged, Payload: next})
	}
}

// Condition returns the most recent Condition sample.
func (s *Scheduler) Condition() Condition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cond
}

// SchedulingConfig returns the Scheduling Config derived from the most
// recent Condition sample.
func (s *Scheduler) SchedulingConfig() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ShouldDispatch is the should-dispatch() gating predicate from spec
// §4.9.
func (s *Scheduler) ShouldDispatch() bool {
	s.mu.Lock()
	cond, cfg := s.cond, s.cfg
	s.mu.Unlock()

	hour := s.now().Hour()
	if cfg.AvoidPeakHours && inPeakRange(hour, cfg.PeakHourStart, cfg.PeakHourEnd) {
		return false
	}
	if cond.BatteryLevel < cfg.LowBatteryThreshold && !cond.Charging {
		return false
	}
	if cfg.PauseWhileCharging && cond.Charging {
		return false
	}
	return true
}

func inPeakRange(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	// wraps past midnight
	return hour >= start || hour < end
}

// NextDelay computes the delay until the next dispatch cycle, per spec
// §4.9's baseline-and-multipliers formula.
func (s *Scheduler) NextDelay() time.Duration {
	s.mu.Lock()
	cond, cfg := s.cond, s.cfg
	s.mu.Unlock()

	delay := 5 * time.Minute
	hour := s.now().Hour()
	if cfg.AvoidPeakHours && inPeakRange(hour, cfg.PeakHourStart, cfg.PeakHourEnd) {
		delay *= 3
	}
	if cond.NetworkClass == NetworkWifi {
		delay /= 2
	}
	if cond.Metered || cond.NetworkClass == NetworkSlow {
		delay *= 2
	}
	if cond.BatteryLevel < cfg.LowBatteryThreshold && !cond.Charging {
		delay *= 4
	}
	return delay
}
