// Copyright 2025 James Ross

// Package queue implements the Job Queue from spec §4.8: a priority
// queue of enrichment jobs with a status state machine, bounded
// concurrency, cancellation, pause/resume, and a bounded terminal-job
// history ring (spec §3). Grounded on the
// teacher's internal/worker/worker.go (dispatch loop shape, breaker
// integration, backoff-then-retry) and internal/queue/job.go (plain
// struct + Marshal/Unmarshal helpers), re-targeted from a Redis-list
// queue to an in-process container/heap priority queue.
package queue

import (
	"encoding/json"
	"time"
)

// Status is a job's position in the spec §4.8 state machine:
// pending -> in-progress -> {completed, failed, cancelled}; failed ->
// pending while retry-count < max-retries. Terminal states are sticky.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether s is a sticky terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Kind distinguishes the two operations the queue dispatches, since
// add-job rejects a duplicate non-terminal job of the same kind for the
// same episode id.
type Kind string

const (
	KindEnrich    Kind = "enrich"
	KindCacheWarm Kind = "cache-warm"
)

// Spec is the input to add-job: what to do, for which episode, at what
// priority.
type Spec struct {
	Kind       Kind   `json:"kind"`
	EpisodeID  string `json:"episodeId"`
	Priority   int    `json:"priority"`
	MaxRetries int    `json:"maxRetries"`
}

// Job is one unit of queued work and its full lifecycle history.
type Job struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	EpisodeID  string        `json:"episodeId"`
	Priority   int           `json:"priority"`
	Status     Status        `json:"status"`
	RetryCount int           `json:"retryCount"`
	MaxRetries int           `json:"maxRetries"`
	CreatedAt  time.Time     `json:"createdAt"`
	StartedAt  time.Time     `json:"startedAt,omitempty"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
	NextRunAt  time.Time     `json:"nextRunAt,omitempty"`
	Duration   time.Duration `json:"durationNs,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Marshal serializes the job, for crash-recovery persistence.
func (j Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalJob deserializes a previously-persisted job.
func UnmarshalJob(b []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(b, &j)
	return j, err
}

// backoffDelay is the spec §4.8 retry delay: base * 2^retry-count.
func backoffDelay(base time.Duration, retryCount int) time.Duration {
	if retryCount <= 0 {
		return base
	}
	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
	}
	return d
}
