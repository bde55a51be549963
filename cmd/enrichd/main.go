// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcusrbrown/vbs-sub004/internal/breaker"
	"github.com/marcusrbrown/vbs-sub004/internal/cache"
	"github.com/marcusrbrown/vbs-sub004/internal/catalog"
	"github.com/marcusrbrown/vbs-sub004/internal/config"
	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/events"
	"github.com/marcusrbrown/vbs-sub004/internal/httpfetch"
	"github.com/marcusrbrown/vbs-sub004/internal/merge"
	"github.com/marcusrbrown/vbs-sub004/internal/obs"
	"github.com/marcusrbrown/vbs-sub004/internal/persistence"
	"github.com/marcusrbrown/vbs-sub004/internal/providers"
	"github.com/marcusrbrown/vbs-sub004/internal/quality"
	"github.com/marcusrbrown/vbs-sub004/internal/queue"
	"github.com/marcusrbrown/vbs-sub004/internal/ratelimit"
	"github.com/marcusrbrown/vbs-sub004/internal/redisclient"
	"github.com/marcusrbrown/vbs-sub004/internal/resolver"
	"github.com/marcusrbrown/vbs-sub004/internal/retry"
	"github.com/marcusrbrown/vbs-sub004/internal/scheduler"
	"github.com/marcusrbrown/vbs-sub004/internal/warmer"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	var configPath string
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, closeStore := buildStore(cfg, logger)
	defer closeStore()

	requestCache := buildCache(cfg, store)
	clients := buildProviderClients(cfg, requestCache, logger)
	res := resolver.New(clients, quality.New(), merge.New(merge.StrategyHighestQuality))
	cat := catalog.NewMemory(nil)

	bus := events.NewBus()
	bus.Subscribe(func(ev events.Event) {
		logger.Debug("event", obs.String("type", string(ev.Type)))
	})

	jobQueue := buildQueue(cfg, bus, res, logger)
	sched := scheduler.New(systemSampler, schedulerConfigFrom(cfg), bus, cfg.Scheduler.SampleInterval)
	warm := warmer.New(cat, jobQueue, bus, cfg.Warmer.DefaultPriority, cfg.Warmer.MinWaveInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus.Subscribe(reactiveWarmingSubscriber(warm, cfg.Warmer.SequenceLength))
	go runEraWarmingWaves(ctx, warm, cat, cfg.Warmer.MinWaveInterval, cfg.Warmer.EraLength)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	httpSrv := obs.StartHTTPServer(cfg, func(c context.Context) error { return nil })
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	obs.StartQueueDepthUpdater(ctx, 2*time.Second, jobQueue, logger)

	go sched.Run(ctx)
	go gateQueueOnSchedule(ctx, jobQueue, sched)

	jobQueue.Run(ctx)
}

// gateQueueOnSchedule pauses/resumes the Job Queue according to the
// Scheduler's should-dispatch() gate, since the Scheduler never drives
// the Queue directly (spec §4.9) — something else has to poll it.
func gateQueueOnSchedule(ctx context.Context, q *queue.Queue, s *scheduler.Scheduler) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	paused := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			allowed := s.ShouldDispatch()
			if allowed && paused {
				q.Resume("scheduler condition improved")
				paused = false
			} else if !allowed && !paused {
				q.Pause("scheduler gating dispatch")
				paused = true
			}
		}
	}
}

// reactiveWarmingSubscriber triggers a sequential-prediction warming wave
// after each enrich job completes, speculatively pre-fetching the
// episodes a viewer is likely to watch next (spec §4.10's "reactively").
func reactiveWarmingSubscriber(warm *warmer.Warmer, sequenceLength int) func(events.Event) {
	return func(ev events.Event) {
		if ev.Type != events.JobCompleted {
			return
		}
		job, ok := ev.Payload.(queue.Job)
		if !ok || job.Kind != queue.KindEnrich {
			return
		}
		_, _ = warm.Warm(warmer.Request{
			Strategy: warmer.StrategySequentialPrediction,
			AfterID:  job.EpisodeID,
			Count:    sequenceLength,
		})
	}
}

// runEraWarmingWaves periodically warms the first episodes of each era,
// per spec §4.10's "periodically" half of the Warmer's trigger model.
func runEraWarmingWaves(ctx context.Context, warm *warmer.Warmer, cat catalog.Catalog, interval time.Duration, eraLength int) {
	if interval <= 0 {
		interval = warmer.DefaultMinWaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, era := range cat.Eras() {
				_, _ = warm.Warm(warmer.Request{
					Strategy: warmer.StrategyEraBased,
					EraID:    era.ID,
					Count:    eraLength,
				})
			}
		}
	}
}

func systemSampler() scheduler.Condition {
	return scheduler.Condition{NetworkClass: scheduler.NetworkWifi, Charging: true, BatteryLevel: 1.0}
}

func schedulerConfigFrom(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		MaxConcurrent:       cfg.Queue.MaxConcurrent,
		AvoidPeakHours:      cfg.Scheduler.AvoidPeakHours,
		PauseWhileCharging:  cfg.Scheduler.PauseWhileCharging,
		PeakHourStart:       cfg.Scheduler.PeakHourStart,
		PeakHourEnd:         cfg.Scheduler.PeakHourEnd,
		LowBatteryThreshold: cfg.Scheduler.LowBatteryThreshold,
	}
}

func buildStore(cfg *config.Config, logger *zap.Logger) (persistence.Store, func()) {
	switch cfg.Cache.Backend {
	case "redis":
		rdb := redisclient.New(cfg)
		return persistence.NewRedisStore(rdb, "enrichd:"), func() { _ = rdb.Close() }
	case "file":
		fs, err := persistence.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			logger.Fatal("failed to open file store", obs.Err(err))
		}
		return fs, func() { _ = fs.Close() }
	default:
		return persistence.NewMemoryStore(), func() {}
	}
}

func buildCache(cfg *config.Config, store persistence.Store) *cache.Cache {
	if !cfg.Cache.Enabled {
		return cache.NewDisabled()
	}
	return cache.New(store)
}

// providerBuild constructs one provider's Client given its dependencies,
// closing over the provider-specific constructor (NewMemoryAlphaClient,
// NewTMDBClient, ...) so buildProviderClients can loop instead of
// repeating the limiter/retry/breaker wiring per provider.
type providerBuild func(fetcher *httpfetch.Client, limiter *ratelimit.Limiter, policy *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile providers.Profile) providers.Client

func buildProviderClients(cfg *config.Config, c *cache.Cache, logger *zap.Logger) []providers.Client {
	fetcher := httpfetch.New(10*time.Second, "enrichd/"+version)
	cbCfg := cfg.CircuitBreaker

	entries := []struct {
		pc     config.ProviderConfig
		source episode.Source
		build  providerBuild
	}{
		{cfg.Providers.MemoryAlpha, episode.SourceMemoryAlpha, func(f *httpfetch.Client, l *ratelimit.Limiter, p *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile providers.Profile) providers.Client {
			return providers.NewMemoryAlphaClient(f, l, p, c, cb, ttl, log, profile)
		}},
		{cfg.Providers.TrekCore, episode.SourceTrekCore, func(f *httpfetch.Client, l *ratelimit.Limiter, p *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile providers.Profile) providers.Client {
			return providers.NewTrekCoreClient(f, l, p, c, cb, ttl, log, profile)
		}},
		{cfg.Providers.StartrekCom, episode.SourceStartrekCom, func(f *httpfetch.Client, l *ratelimit.Limiter, p *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile providers.Profile) providers.Client {
			return providers.NewStartrekComClient(f, l, p, c, cb, ttl, log, profile)
		}},
		{cfg.Providers.STAPI, episode.SourceSTAPI, func(f *httpfetch.Client, l *ratelimit.Limiter, p *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile providers.Profile) providers.Client {
			return providers.NewSTAPIClient(f, l, p, c, cb, ttl, log, profile, cfg.Providers.STAPI.BaseURL)
		}},
		{cfg.Providers.TMDB, episode.SourceTMDB, func(f *httpfetch.Client, l *ratelimit.Limiter, p *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile providers.Profile) providers.Client {
			return providers.NewTMDBClient(f, l, p, c, cb, ttl, log, profile, cfg.Providers.TMDB.APIKey, cfg.Providers.TMDB.BaseURL)
		}},
		{cfg.Providers.IMDB, episode.SourceIMDB, func(f *httpfetch.Client, l *ratelimit.Limiter, p *retry.Policy, c *cache.Cache, cb *breaker.CircuitBreaker, ttl time.Duration, log *zap.Logger, profile providers.Profile) providers.Client {
			// No public search-by-episode API; ids are filled in as prior
			// enrichment or manual entry discovers them (providers.IMDBClient).
			return providers.NewIMDBClient(f, l, p, c, cb, ttl, log, profile, make(map[string]string))
		}},
	}

	clients := make([]providers.Client, 0, len(entries)+1)
	for _, e := range entries {
		profile := providers.Profile{
			Source:          e.source,
			ConfidenceLevel: e.pc.ConfidenceLevel,
			Available:       e.pc.Enabled,
		}
		limiter := ratelimit.New(e.pc.RequestsPerSecond, e.pc.BurstSize)
		policy := retry.New(e.pc.MaxRetries, e.pc.InitialDelay, e.pc.MaxDelay, e.pc.BackoffMultiplier, e.pc.Jitter)
		cb := breaker.New(cbCfg.Window, cbCfg.CooldownPeriod, cbCfg.FailureThreshold, cbCfg.MinSamples)
		clients = append(clients, e.build(fetcher, limiter, policy, c, cb, cfg.Cache.EpisodeTTL, logger, profile))
	}

	clients = append(clients, providers.NewManualClient(persistence.NewMemoryStore(), providers.Profile{
		Source:    episode.SourceManual,
		Available: true,
	}))
	return clients
}

func buildQueue(cfg *config.Config, bus *events.Bus, res *resolver.Resolver, logger *zap.Logger) *queue.Queue {
	cb := breaker.New(cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples)
	process := func(ctx context.Context, job queue.Job) error {
		switch job.Kind {
		case queue.KindEnrich, queue.KindCacheWarm:
			id, err := episode.Parse(job.EpisodeID)
			if err != nil {
				return err
			}
			_, _, err = res.Enrich(ctx, id.String())
			return err
		default:
			return fmt.Errorf("unknown job kind: %s", job.Kind)
		}
	}
	return queue.New(queue.Config{
		MaxConcurrent:      cfg.Queue.MaxConcurrent,
		ProcessingInterval: cfg.Queue.ProcessingInterval,
		RetryBase:          cfg.Queue.RetryBaseDelay,
		ETAWindow:          cfg.Queue.ETAWindowSize,
	}, process, bus, cb, logger)
}
