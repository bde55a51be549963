// Copyright 2025 James Ross
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/events"
	"github.com/marcusrbrown/vbs-sub004/internal/retry"
	"github.com/stretchr/testify/require"
)

// New raises any ProcessingInterval below one second to one second, so the
// first dispatch happens about a second after Run starts; the waits in the
// dispatch tests below allow for that.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met within timeout")
}

func TestAddJobRejectsDuplicateNonTerminalKind(t *testing.T) {
	q := New(Config{ProcessingInterval: time.Second}, func(ctx context.Context, j Job) error { return nil }, nil, nil, nil)
	_, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)
	_, err = q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.Error(t, err)
}

func TestRunCompletesPendingJob(t *testing.T) {
	recorder := events.NewRecorder()
	q := New(Config{ProcessingInterval: 10 * time.Millisecond}, func(ctx context.Context, j Job) error { return nil }, recorder, nil, nil)
	id, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go q.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		return q.GetProgress("").Completed == 1
	})

	var sawAdded, sawStarted, sawCompleted bool
	for _, ev := range recorder.Events() {
		switch ev.Type {
		case events.JobAdded:
			sawAdded = true
		case events.JobStarted:
			sawStarted = true
		case events.JobCompleted:
			sawCompleted = true
		}
	}
	require.True(t, sawAdded)
	require.True(t, sawStarted)
	require.True(t, sawCompleted)
	_ = id
}

func TestRunRetriesTransientThenFails(t *testing.T) {
	var calls int
	var mu sync.Mutex
	q := New(Config{ProcessingInterval: 10 * time.Millisecond, RetryBase: 10 * time.Millisecond}, func(ctx context.Context, j Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return retry.Wrap(errors.New("timeout"), retry.CategoryTransient)
	}, nil, nil, nil)
	_, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()
	go q.Run(ctx)

	waitFor(t, 3*time.Second, func() bool {
		return q.GetProgress("").Failed == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, calls, 2)
}

func TestRunFailsPermanentErrorWithoutRetry(t *testing.T) {
	var calls int
	var mu sync.Mutex
	q := New(Config{ProcessingInterval: 10 * time.Millisecond}, func(ctx context.Context, j Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return retry.Wrap(errors.New("not found"), retry.CategoryPermanent)
	}, nil, nil, nil)
	_, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 5})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go q.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		return q.GetProgress("").Failed == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestCancelJobBeforeDispatchMarksCancelled(t *testing.T) {
	q := New(Config{ProcessingInterval: time.Hour}, func(ctx context.Context, j Job) error { return nil }, nil, nil, nil)
	id, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)

	require.NoError(t, q.CancelJob(id))
	require.Equal(t, 1, q.GetProgress("").Cancelled)
}

func TestCancelAllCancelsEveryNonTerminalJob(t *testing.T) {
	q := New(Config{ProcessingInterval: time.Hour}, func(ctx context.Context, j Job) error { return nil }, nil, nil, nil)
	_, _ = q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	_, _ = q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e02", Priority: 1, MaxRetries: 1})

	q.CancelAll()
	require.Equal(t, 2, q.GetProgress("").Cancelled)
}

func TestPauseStopsDispatchUntilResume(t *testing.T) {
	var calls int
	var mu sync.Mutex
	q := New(Config{ProcessingInterval: 10 * time.Millisecond}, func(ctx context.Context, j Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}, nil, nil, nil)
	q.Pause("maintenance")
	_, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	require.Equal(t, 0, calls)
	mu.Unlock()

	q.Resume("maintenance done")
	waitFor(t, 2*time.Second, func() bool {
		return q.GetProgress("").Completed == 1
	})
}

func TestDispatchPrefersHigherPriorityThenOlderJob(t *testing.T) {
	var mu sync.Mutex
	var order []string
	gate := make(chan struct{})
	q := New(Config{MaxConcurrent: 1, ProcessingInterval: 5 * time.Millisecond}, func(ctx context.Context, j Job) error {
		mu.Lock()
		order = append(order, j.EpisodeID)
		mu.Unlock()
		<-gate
		return nil
	}, nil, nil, nil)

	_, _ = q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "low", Priority: 1, MaxRetries: 1})
	_, _ = q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "high", Priority: 5, MaxRetries: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 1
	})
	close(gate)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"high"}, order)
}

func TestRunMovesCompletedJobIntoBoundedHistory(t *testing.T) {
	q := New(Config{ProcessingInterval: 10 * time.Millisecond}, func(ctx context.Context, j Job) error { return nil }, nil, nil, nil)
	id, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go q.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		return q.GetProgress("").Completed == 1
	})

	q.mu.Lock()
	_, stillLive := q.jobs[id]
	historyLen := len(q.history)
	q.mu.Unlock()
	require.False(t, stillLive, "completed job should be evicted from the live table")
	require.Equal(t, 1, historyLen)
}

func TestHistoryEvictionIsBoundedByCapacity(t *testing.T) {
	q := New(Config{ProcessingInterval: time.Hour, HistoryCapacity: 2}, func(ctx context.Context, j Job) error { return nil }, nil, nil, nil)
	for i := 0; i < 5; i++ {
		id, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: fmt.Sprintf("tos_s01_e0%d", i+1), Priority: 1, MaxRetries: 1})
		require.NoError(t, err)
		require.NoError(t, q.CancelJob(id))
	}

	require.Equal(t, 2, len(q.History()))
}

func TestAddJobGeneratesUniqueIDs(t *testing.T) {
	q := New(Config{ProcessingInterval: time.Hour}, func(ctx context.Context, j Job) error { return nil }, nil, nil, nil)
	id1, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)
	require.NoError(t, q.CancelJob(id1))
	id2, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestDepthByStatusCountsPendingJobs(t *testing.T) {
	q := New(Config{ProcessingInterval: time.Second}, func(ctx context.Context, j Job) error { return nil }, nil, nil, nil)
	_, err := q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e01", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)
	_, err = q.AddJob(Spec{Kind: KindEnrich, EpisodeID: "tos_s01_e02", Priority: 1, MaxRetries: 1})
	require.NoError(t, err)

	depth := q.DepthByStatus()
	require.Equal(t, 2, depth[string(StatusPending)])
}
