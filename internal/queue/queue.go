// Copyright 2025 James Ross
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcusrbrown/vbs-sub004/internal/breaker"
	"github.com/marcusrbrown/vbs-sub004/internal/events"
	"github.com/marcusrbrown/vbs-sub004/internal/obs"
	"github.com/marcusrbrown/vbs-sub004/internal/retry"
	"go.uber.org/zap"
)

// DefaultHistoryCapacity bounds the terminal-job history ring, per spec
// §3's "the Queue owns Job records until terminal, then moves them to a
// bounded history".
const DefaultHistoryCapacity = 500

// Processor runs one job's work and reports whether it succeeded. It
// must return a *retry.ClassifiedError (via retry.Wrap) when the error
// should or shouldn't be retried; an unclassified error defaults to
// transient, per spec §7.
type Processor func(ctx context.Context, job Job) error

// Config bounds concurrency and the dispatch loop, per spec §4.8.
type Config struct {
	MaxConcurrent      int
	ProcessingInterval time.Duration
	RetryBase          time.Duration
	ETAWindow          int
	HistoryCapacity    int
}

// DefaultConfig matches spec §4.8's stated defaults.
var DefaultConfig = Config{
	MaxConcurrent:      3,
	ProcessingInterval: time.Second,
	RetryBase:          time.Second,
	ETAWindow:          100,
	HistoryCapacity:    DefaultHistoryCapacity,
}

// Progress is the aggregated snapshot returned by get-progress.
type Progress struct {
	Total               int           `json:"total"`
	Completed           int           `json:"completed"`
	Failed              int           `json:"failed"`
	Cancelled           int           `json:"cancelled"`
	Running             int           `json:"running"`
	Paused              bool          `json:"paused"`
	EstimatedCompletion time.Duration `json:"estimatedCompletion"`
}

// Queue is the Job Queue: a priority queue plus dispatch loop observing
// spec §4.8's concurrency, pause/resume, and retry semantics.
type Queue struct {
	cfg     Config
	process Processor
	sink    events.Sink
	breaker *breaker.CircuitBreaker
	log     *zap.Logger

	mu       sync.Mutex
	pending  jobHeap
	jobs     map[string]*Job
	history  []*Job
	active   map[string]context.CancelFunc
	inflight int
	paused   bool

	durMu     sync.Mutex
	durations []time.Duration
}

// New builds a Queue that dispatches jobs to process. sink receives
// lifecycle events; log defaults to a no-op logger if nil.
func New(cfg Config, process Processor, sink events.Sink, cb *breaker.CircuitBreaker, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig.MaxConcurrent
	}
	if cfg.ProcessingInterval < time.Second {
		cfg.ProcessingInterval = DefaultConfig.ProcessingInterval
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultConfig.RetryBase
	}
	if cfg.ETAWindow <= 0 {
		cfg.ETAWindow = DefaultConfig.ETAWindow
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultConfig.HistoryCapacity
	}
	return &Queue{
		cfg:     cfg,
		process: process,
		sink:    sink,
		breaker: cb,
		log:     log,
		jobs:    make(map[string]*Job),
		active:  make(map[string]context.CancelFunc),
	}
}

// ErrDuplicateJob is returned by AddJob when a non-terminal job of the
// same kind already exists for the episode id.
type ErrDuplicateJob struct {
	Kind      Kind
	EpisodeID string
}

func (e *ErrDuplicateJob) Error() string {
	return fmt.Sprintf("queue: non-terminal %s job already exists for %s", e.Kind, e.EpisodeID)
}

// AddJob is add-job(spec) -> job-id.
func (q *Queue) AddJob(spec Spec) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.jobs {
		if j.Kind == spec.Kind && j.EpisodeID == spec.EpisodeID && !j.Status.Terminal() {
			return "", &ErrDuplicateJob{Kind: spec.Kind, EpisodeID: spec.EpisodeID}
		}
	}

	job := &Job{
		ID:         uuid.NewString(),
		Kind:       spec.Kind,
		EpisodeID:  spec.EpisodeID,
		Priority:   spec.Priority,
		Status:     StatusPending,
		MaxRetries: spec.MaxRetries,
		CreatedAt:  time.Now(),
	}
	q.jobs[job.ID] = job
	heap.Push(&q.pending, job)

	obs.JobsAdded.WithLabelValues(string(spec.Kind)).Inc()
	q.publish(events.JobAdded, *job)
	return job.ID, nil
}

// CancelJob marks a job cancelled. In-progress jobs observe cancellation
// at their next suspension point via context cancellation.
func (q *Queue) CancelJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelLocked(id)
}

func (q *Queue) cancelLocked(id string) error {
	job, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("queue: unknown job %s", id)
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = StatusCancelled
	job.FinishedAt = time.Now()
	if cancel, ok := q.active[id]; ok {
		cancel()
		delete(q.active, id)
	}
	q.evictToHistory(job)
	obs.JobsCancelled.WithLabelValues(string(job.Kind)).Inc()
	q.publish(events.JobCancelled, *job)
	return nil
}

// evictToHistory moves a job that just reached a terminal status out of
// the live table into the bounded history ring, per spec §3. Callers
// must hold q.mu.
func (q *Queue) evictToHistory(job *Job) {
	delete(q.jobs, job.ID)
	q.history = append(q.history, job)
	if over := len(q.history) - q.cfg.HistoryCapacity; over > 0 {
		q.history = q.history[over:]
	}
}

// CancelAll cancels every pending and in-progress job.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, job := range q.jobs {
		if !job.Status.Terminal() {
			_ = q.cancelLocked(id)
		}
	}
}

// Pause halts dispatch. In-progress jobs are not interrupted.
func (q *Queue) Pause(reason string) {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	q.publish(events.QueuePaused, reason)
}

// Resume resumes dispatch.
func (q *Queue) Resume(reason string) {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.publish(events.QueueResumed, reason)
}

// GetProgress is get-progress(operation-id?). operationID filters to
// jobs whose EpisodeID matches; empty returns totals across live and
// historical jobs.
func (q *Queue) GetProgress(operationID string) Progress {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := Progress{Paused: q.paused}
	count := func(job *Job) {
		if operationID != "" && job.EpisodeID != operationID {
			return
		}
		p.Total++
		switch job.Status {
		case StatusCompleted:
			p.Completed++
		case StatusFailed:
			p.Failed++
		case StatusCancelled:
			p.Cancelled++
		case StatusInProgress:
			p.Running++
		}
	}
	for _, job := range q.jobs {
		count(job)
	}
	for _, job := range q.history {
		count(job)
	}
	p.EstimatedCompletion = q.eta(p.Total - p.Completed - p.Failed - p.Cancelled)
	return p
}

// DepthByStatus reports the current job count per status across the live
// table and the bounded history, for internal/obs's queue-depth gauge.
func (q *Queue) DepthByStatus() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	depth := make(map[string]int, 5)
	for _, job := range q.jobs {
		depth[string(job.Status)]++
	}
	for _, job := range q.history {
		depth[string(job.Status)]++
	}
	return depth
}

// History returns a snapshot of the bounded terminal-job history, oldest
// first, for debugging and progress queries per spec §3.
func (q *Queue) History() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Job, len(q.history))
	for i, job := range q.history {
		out[i] = *job
	}
	return out
}

func (q *Queue) eta(remaining int) time.Duration {
	q.durMu.Lock()
	defer q.durMu.Unlock()
	if len(q.durations) == 0 || remaining <= 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range q.durations {
		sum += d
	}
	avg := sum / time.Duration(len(q.durations))
	concurrency := q.cfg.MaxConcurrent
	if concurrency < 1 {
		concurrency = 1
	}
	waves := (remaining + concurrency - 1) / concurrency
	return avg * time.Duration(waves)
}

func (q *Queue) recordDuration(d time.Duration) {
	q.durMu.Lock()
	defer q.durMu.Unlock()
	q.durations = append(q.durations, d)
	if len(q.durations) > q.cfg.ETAWindow {
		q.durations = q.durations[len(q.durations)-q.cfg.ETAWindow:]
	}
}

func (q *Queue) publish(t events.Type, payload any) {
	if q.sink != nil {
		q.sink.Publish(events.Event{Type: t, Payload: payload})
	}
}

// Run drives the dispatch loop until ctx is cancelled, per spec §4.8's
// 1-second processing-interval floor. Grounded on the teacher's
// internal/worker/worker.go Run/runOne dispatch shape.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.ProcessingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.dispatchReady(ctx)
		}
	}
}

func (q *Queue) dispatchReady(ctx context.Context) {
	for {
		job, runCtx, ok := q.tryDispatch(ctx)
		if !ok {
			return
		}
		go q.run(runCtx, job)
	}
}

// tryDispatch pops the highest-priority pending job and promotes it to
// in-progress, skipping any entries left in the heap by a job that was
// cancelled while still pending.
func (q *Queue) tryDispatch(ctx context.Context) (*Job, context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.paused || q.inflight >= q.cfg.MaxConcurrent {
		return nil, nil, false
	}
	if q.breaker != nil && !q.breaker.Allow() {
		return nil, nil, false
	}

	var job *Job
	for q.pending.Len() > 0 {
		candidate := heap.Pop(&q.pending).(*Job)
		if candidate.Status.Terminal() {
			continue
		}
		job = candidate
		break
	}
	if job == nil {
		return nil, nil, false
	}

	job.Status = StatusInProgress
	job.StartedAt = time.Now()
	q.inflight++

	runCtx, cancel := context.WithCancel(ctx)
	q.active[job.ID] = cancel
	q.publish(events.JobStarted, *job)
	return job, runCtx, true
}

func (q *Queue) run(ctx context.Context, job *Job) {
	start := time.Now()
	err := q.process(ctx, *job)
	duration := time.Since(start)
	obs.JobProcessingDuration.Observe(duration.Seconds())

	if q.breaker != nil {
		q.breaker.Record(err == nil)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, job.ID)
	q.inflight--
	q.recordDuration(duration)

	if job.Status == StatusCancelled {
		return
	}

	if err == nil {
		job.Status = StatusCompleted
		job.FinishedAt = time.Now()
		job.Duration = duration
		q.evictToHistory(job)
		obs.JobsCompleted.WithLabelValues(string(job.Kind)).Inc()
		q.publish(events.JobCompleted, *job)
		return
	}

	if !retry.Retryable(err) {
		job.Status = StatusFailed
		job.FinishedAt = time.Now()
		job.Error = err.Error()
		q.evictToHistory(job)
		obs.JobsFailed.WithLabelValues(string(job.Kind)).Inc()
		q.publish(events.JobFailed, *job)
		return
	}

	job.RetryCount++
	if job.RetryCount >= job.MaxRetries {
		job.Status = StatusFailed
		job.FinishedAt = time.Now()
		job.Error = err.Error()
		q.evictToHistory(job)
		obs.JobsFailed.WithLabelValues(string(job.Kind)).Inc()
		q.publish(events.JobFailed, *job)
		return
	}

	job.Status = StatusPending
	job.Error = err.Error()
	job.NextRunAt = time.Now().Add(backoffDelay(q.cfg.RetryBase, job.RetryCount))
	obs.JobsRetried.WithLabelValues(string(job.Kind)).Inc()
	time.AfterFunc(backoffDelay(q.cfg.RetryBase, job.RetryCount), func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if job.Status == StatusPending {
			heap.Push(&q.pending, job)
		}
	})
}
