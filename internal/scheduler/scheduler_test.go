// Copyright 2025 James Ross
package scheduler

import (
	"testing"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/events"
	"github.com/stretchr/testify/require"
)

func TestShouldDispatchFalseInPeakHoursWhenAvoiding(t *testing.T) {
	s := New(func() Condition {
		return Condition{NetworkClass: NetworkCellular, Metered: true, BatteryLevel: 0.8}
	}, DefaultConfig, nil, time.Hour)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC) }

	require.False(t, s.ShouldDispatch())
}

func TestShouldDispatchFalseOnLowBatteryNotCharging(t *testing.T) {
	s := New(func() Condition {
		return Condition{BatteryLevel: 0.1, Charging: false}
	}, DefaultConfig, nil, time.Hour)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC) }

	require.False(t, s.ShouldDispatch())
}

func TestShouldDispatchFalseWhenPauseWhileChargingAndCharging(t *testing.T) {
	base := DefaultConfig
	base.PauseWhileCharging = true
	s := New(func() Condition {
		return Condition{BatteryLevel: 0.9, Charging: true}
	}, base, nil, time.Hour)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC) }

	require.False(t, s.ShouldDispatch())
}

func TestShouldDispatchTrueOtherwise(t *testing.T) {
	s := New(func() Condition {
		return Condition{BatteryLevel: 0.9, Charging: true, NetworkClass: NetworkWifi}
	}, DefaultConfig, nil, time.Hour)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC) }

	require.True(t, s.ShouldDispatch())
}

func TestNextDelayBaselineAndMultipliers(t *testing.T) {
	s := New(func() Condition {
		return Condition{BatteryLevel: 0.9, Charging: true, NetworkClass: NetworkCellular}
	}, DefaultConfig, nil, time.Hour)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC) }

	require.Equal(t, 5*time.Minute, s.NextDelay())
}

func TestNextDelayHalvesOnWifi(t *testing.T) {
	s := New(func() Condition {
		return Condition{BatteryLevel: 0.9, Charging: true, NetworkClass: NetworkWifi}
	}, DefaultConfig, nil, time.Hour)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC) }

	require.Equal(t, 150*time.Second, s.NextDelay())
}

func TestNextDelayQuadruplesOnLowBattery(t *testing.T) {
	s := New(func() Condition {
		return Condition{BatteryLevel: 0.05, Charging: false}
	}, DefaultConfig, nil, time.Hour)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC) }

	require.Equal(t, 20*time.Minute, s.NextDelay())
}

func TestSampleOnceEmitsChangeEventOnSignificantBatteryDelta(t *testing.T) {
	level := 0.9
	rec := events.NewRecorder()
	s := New(func() Condition {
		return Condition{BatteryLevel: level, Charging: true}
	}, DefaultConfig, rec, time.Hour)

	level = 0.7 // delta 0.2 >= 0.1 threshold
	s.sampleOnce()

	require.Len(t, rec.Events(), 1)
	require.Equal(t, events.SchedulerConditionChanged, rec.Events()[0].Type)
}

func TestSampleOnceSkipsEventOnInsignificantDelta(t *testing.T) {
	level := 0.9
	rec := events.NewRecorder()
	s := New(func() Condition {
		return Condition{BatteryLevel: level, Charging: true}
	}, DefaultConfig, rec, time.Hour)

	level = 0.85 // delta 0.05 < 0.1 threshold
	s.sampleOnce()

	require.Empty(t, rec.Events())
}
