// Copyright 2025 James Ross
package obs

import (
	"fmt"
	"net/http"

	"github.com/marcusrbrown/vbs-sub004/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsAdded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_jobs_added_total",
		Help: "Total number of jobs added to the queue, by kind",
	}, []string{"kind"})
	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_jobs_completed_total",
		Help: "Total number of successfully completed jobs, by kind",
	}, []string{"kind"})
	JobsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_jobs_failed_total",
		Help: "Total number of terminally failed jobs, by kind",
	}, []string{"kind"})
	JobsRetried = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_jobs_retried_total",
		Help: "Total number of job retry attempts, by kind",
	}, []string{"kind"})
	JobsCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_jobs_cancelled_total",
		Help: "Total number of cancelled jobs, by kind",
	}, []string{"kind"})
	JobProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrichment_job_processing_duration_seconds",
		Help:    "Histogram of job processing durations",
		Buckets: prometheus.DefBuckets,
	})
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "enrichment_queue_depth",
		Help: "Current number of jobs by status",
	}, []string{"status"})
	ProviderFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_fetch_duration_seconds",
		Help:    "Histogram of provider fetch durations",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	ProviderFetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_fetch_errors_total",
		Help: "Total provider fetch errors, by provider and category",
	}, []string{"provider", "category"})
	RateLimiterWaits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limiter_waits_total",
		Help: "Total number of times a caller waited for a rate-limit token",
	}, []string{"provider"})
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "provider_circuit_breaker_state",
		Help: "0 Closed, 1 HalfOpen, 2 Open",
	}, []string{"provider"})
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "request_cache_hits_total",
		Help: "Total request cache hits",
	})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "request_cache_misses_total",
		Help: "Total request cache misses",
	})
	WarmingWaves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_warming_waves_total",
		Help: "Total cache-warming waves run, by strategy",
	}, []string{"strategy"})
	MigrationTransactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "migration_transactions_total",
		Help: "Total migration transactions, by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		JobsAdded, JobsCompleted, JobsFailed, JobsRetried, JobsCancelled,
		JobProcessingDuration, QueueDepth,
		ProviderFetchDuration, ProviderFetchErrors, RateLimiterWaits, CircuitBreakerState,
		CacheHits, CacheMisses, WarmingWaves, MigrationTransactions,
	)
}

// StartMetricsServer exposes /metrics and returns a server for controlled
// shutdown. Prefer StartHTTPServer, which also registers health endpoints.
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
