// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Redis configures the optional Redis-backed persistence/cache backend.
type Redis struct {
	Addr               string        `mapstructure:"addr"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	DB                 int           `mapstructure:"db"`
	PoolSizeMultiplier int           `mapstructure:"pool_size_multiplier"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

// ProviderConfig is the per-source configuration from spec §6: rate limit,
// retry bounds, and credentials. Absent credentials disable a provider.
type ProviderConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ConfidenceLevel   float64       `mapstructure:"confidence_level"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BurstSize         int           `mapstructure:"burst_size"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	Jitter            time.Duration `mapstructure:"jitter"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	DailyQuota        int           `mapstructure:"daily_quota"`
}

// Providers holds the per-source configuration map, keyed by source tag.
type Providers struct {
	MemoryAlpha ProviderConfig `mapstructure:"memory_alpha"`
	TMDB        ProviderConfig `mapstructure:"tmdb"`
	IMDB        ProviderConfig `mapstructure:"imdb"`
	TrekCore    ProviderConfig `mapstructure:"trekcore"`
	STAPI       ProviderConfig `mapstructure:"stapi"`
	StartrekCom ProviderConfig `mapstructure:"startrek_com"`
}

// CacheConfig configures the Request Cache (spec §4.3).
type CacheConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Backend      string        `mapstructure:"backend"` // "memory", "file", "redis"
	Dir          string        `mapstructure:"dir"`
	EpisodeTTL   time.Duration `mapstructure:"episode_ttl"`
	SeriesTTL    time.Duration `mapstructure:"series_ttl"`
	PersonTTL    time.Duration `mapstructure:"person_ttl"`
	HealthTTL    time.Duration `mapstructure:"health_ttl"`
	AnalyticsTTL time.Duration `mapstructure:"analytics_ttl"`
}

// QueueConfig configures the Job Queue (spec §4.8).
type QueueConfig struct {
	MaxConcurrent      int           `mapstructure:"max_concurrent"`
	ProcessingInterval time.Duration `mapstructure:"processing_interval"`
	DefaultMaxRetries  int           `mapstructure:"default_max_retries"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
	HistorySize        int           `mapstructure:"history_size"`
	ETAWindowSize      int           `mapstructure:"eta_window_size"`
}

// CircuitBreaker configures the per-provider circuit breaker.
type CircuitBreaker struct {
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
	MinSamples       int           `mapstructure:"min_samples"`
}

// SchedulerConfig configures the device/network-aware dispatch gate
// (spec §4.9).
type SchedulerConfig struct {
	SampleInterval         time.Duration `mapstructure:"sample_interval"`
	PreferWifi             bool          `mapstructure:"prefer_wifi"`
	AvoidPeakHours         bool          `mapstructure:"avoid_peak_hours"`
	PeakHourStart          int           `mapstructure:"peak_hour_start"`
	PeakHourEnd            int           `mapstructure:"peak_hour_end"`
	PeakHourConcurrencyCap int           `mapstructure:"peak_hour_concurrency_cap"`
	LowBatteryThreshold    float64       `mapstructure:"low_battery_threshold"`
	PauseWhileCharging     bool          `mapstructure:"pause_while_charging"`
	BaselineDelay          time.Duration `mapstructure:"baseline_delay"`
}

// WarmerConfig configures the Cache Warmer (spec §4.10).
type WarmerConfig struct {
	MinWaveInterval time.Duration `mapstructure:"min_wave_interval"`
	DefaultPriority int           `mapstructure:"default_priority"`
	SequenceLength  int           `mapstructure:"sequence_length"`
	EraLength       int           `mapstructure:"era_length"`
}

// MigrationConfig configures the Progress Migration Engine (spec §4.11).
type MigrationConfig struct {
	ProgressKey          string `mapstructure:"progress_key"`
	StateKey             string `mapstructure:"state_key"`
	TransactionKeyPrefix string `mapstructure:"transaction_key_prefix"`
}

// TracingConfig is retained for forward compatibility with dashboards that
// read observability.tracing.enabled; the core does not emit spans (see
// DESIGN.md for why the OpenTelemetry stack was not carried forward).
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ObservabilityConfig configures logging and metrics.
type ObservabilityConfig struct {
	MetricsPort int           `mapstructure:"metrics_port"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFile     string        `mapstructure:"log_file"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// Config is the root configuration object, loaded via Load.
type Config struct {
	Redis          Redis               `mapstructure:"redis"`
	Providers      Providers           `mapstructure:"providers"`
	Cache          CacheConfig         `mapstructure:"cache"`
	Queue          QueueConfig         `mapstructure:"queue"`
	CircuitBreaker CircuitBreaker      `mapstructure:"circuit_breaker"`
	Scheduler      SchedulerConfig     `mapstructure:"scheduler"`
	Warmer         WarmerConfig        `mapstructure:"warmer"`
	Migration      MigrationConfig     `mapstructure:"migration"`
	Observability  ObservabilityConfig `mapstructure:"observability"`
}

func defaultConfig() *Config {
	return &Config{
		Redis: Redis{
			Addr:               "localhost:6379",
			PoolSizeMultiplier: 10,
			MinIdleConns:       5,
			DialTimeout:        5 * time.Second,
			ReadTimeout:        3 * time.Second,
			WriteTimeout:       3 * time.Second,
			MaxRetries:         3,
		},
		Providers: Providers{
			MemoryAlpha: ProviderConfig{Enabled: true, ConfidenceLevel: 0.9, RequestsPerSecond: 1, BurstSize: 3, MaxRetries: 2, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, Jitter: 250 * time.Millisecond, DailyQuota: 86400, BaseURL: "https://memory-alpha.fandom.com"},
			TMDB:        ProviderConfig{Enabled: false, ConfidenceLevel: 0.8, RequestsPerSecond: 4, BurstSize: 40, MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, Jitter: 250 * time.Millisecond, DailyQuota: 1000, BaseURL: "https://api.themoviedb.org/3"},
			IMDB:        ProviderConfig{Enabled: false, ConfidenceLevel: 0.75, RequestsPerSecond: 1, BurstSize: 5, MaxRetries: 2, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, Jitter: 250 * time.Millisecond},
			TrekCore:    ProviderConfig{Enabled: true, ConfidenceLevel: 0.7, RequestsPerSecond: 0.5, BurstSize: 2, MaxRetries: 1, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, Jitter: 250 * time.Millisecond, DailyQuota: 100, BaseURL: "https://trekcore.com"},
			STAPI:       ProviderConfig{Enabled: true, ConfidenceLevel: 0.85, RequestsPerSecond: 2, BurstSize: 10, MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, Jitter: 250 * time.Millisecond, DailyQuota: 10000, BaseURL: "https://stapi.co/api/v1/rest"},
			StartrekCom: ProviderConfig{Enabled: false, ConfidenceLevel: 0.65, RequestsPerSecond: 1, BurstSize: 3, MaxRetries: 2, InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, Jitter: 250 * time.Millisecond},
		},
		Cache: CacheConfig{
			Enabled:      true,
			Backend:      "memory",
			Dir:          "./data/cache",
			EpisodeTTL:   24 * time.Hour,
			SeriesTTL:    7 * 24 * time.Hour,
			PersonTTL:    30 * 24 * time.Hour,
			HealthTTL:    5 * time.Minute,
			AnalyticsTTL: time.Hour,
		},
		Queue: QueueConfig{
			MaxConcurrent:      3,
			ProcessingInterval: time.Second,
			DefaultMaxRetries:  3,
			RetryBaseDelay:     500 * time.Millisecond,
			JobTimeout:         30 * time.Second,
			HistorySize:        500,
			ETAWindowSize:      100,
		},
		CircuitBreaker: CircuitBreaker{
			FailureThreshold: 0.5,
			Window:           time.Minute,
			CooldownPeriod:   30 * time.Second,
			MinSamples:       5,
		},
		Scheduler: SchedulerConfig{
			SampleInterval:         10 * time.Second,
			PreferWifi:             true,
			AvoidPeakHours:         true,
			PeakHourStart:          8,
			PeakHourEnd:            22,
			PeakHourConcurrencyCap: 1,
			LowBatteryThreshold:    0.2,
			PauseWhileCharging:     false,
			BaselineDelay:          5 * time.Minute,
		},
		Warmer: WarmerConfig{
			MinWaveInterval: 60 * time.Second,
			DefaultPriority: 10,
			SequenceLength:  3,
			EraLength:       3,
		},
		Migration: MigrationConfig{
			ProgressKey:          "progress",
			StateKey:             "migration_state",
			TransactionKeyPrefix: "migration_transaction_",
		},
		Observability: ObservabilityConfig{
			MetricsPort: 9090,
			LogLevel:    "info",
		},
	}
}

// Load reads configuration from a YAML file with environment overrides,
// exactly as the teacher's config.Load does: defaults set first, then the
// file (if present), then environment variables with "." replaced by "_".
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	setDefaults(v, def)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyCredentialGating(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.pool_size_multiplier", def.Redis.PoolSizeMultiplier)
	v.SetDefault("redis.min_idle_conns", def.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", def.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", def.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", def.Redis.WriteTimeout)
	v.SetDefault("redis.max_retries", def.Redis.MaxRetries)

	setProviderDefaults(v, "providers.memory_alpha", def.Providers.MemoryAlpha)
	setProviderDefaults(v, "providers.tmdb", def.Providers.TMDB)
	setProviderDefaults(v, "providers.imdb", def.Providers.IMDB)
	setProviderDefaults(v, "providers.trekcore", def.Providers.TrekCore)
	setProviderDefaults(v, "providers.stapi", def.Providers.STAPI)
	setProviderDefaults(v, "providers.startrek_com", def.Providers.StartrekCom)

	v.SetDefault("cache.enabled", def.Cache.Enabled)
	v.SetDefault("cache.backend", def.Cache.Backend)
	v.SetDefault("cache.dir", def.Cache.Dir)
	v.SetDefault("cache.episode_ttl", def.Cache.EpisodeTTL)
	v.SetDefault("cache.series_ttl", def.Cache.SeriesTTL)
	v.SetDefault("cache.person_ttl", def.Cache.PersonTTL)
	v.SetDefault("cache.health_ttl", def.Cache.HealthTTL)
	v.SetDefault("cache.analytics_ttl", def.Cache.AnalyticsTTL)

	v.SetDefault("queue.max_concurrent", def.Queue.MaxConcurrent)
	v.SetDefault("queue.processing_interval", def.Queue.ProcessingInterval)
	v.SetDefault("queue.default_max_retries", def.Queue.DefaultMaxRetries)
	v.SetDefault("queue.retry_base_delay", def.Queue.RetryBaseDelay)
	v.SetDefault("queue.job_timeout", def.Queue.JobTimeout)
	v.SetDefault("queue.history_size", def.Queue.HistorySize)
	v.SetDefault("queue.eta_window_size", def.Queue.ETAWindowSize)

	v.SetDefault("circuit_breaker.failure_threshold", def.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.window", def.CircuitBreaker.Window)
	v.SetDefault("circuit_breaker.cooldown_period", def.CircuitBreaker.CooldownPeriod)
	v.SetDefault("circuit_breaker.min_samples", def.CircuitBreaker.MinSamples)

	v.SetDefault("scheduler.sample_interval", def.Scheduler.SampleInterval)
	v.SetDefault("scheduler.prefer_wifi", def.Scheduler.PreferWifi)
	v.SetDefault("scheduler.avoid_peak_hours", def.Scheduler.AvoidPeakHours)
	v.SetDefault("scheduler.peak_hour_start", def.Scheduler.PeakHourStart)
	v.SetDefault("scheduler.peak_hour_end", def.Scheduler.PeakHourEnd)
	v.SetDefault("scheduler.peak_hour_concurrency_cap", def.Scheduler.PeakHourConcurrencyCap)
	v.SetDefault("scheduler.low_battery_threshold", def.Scheduler.LowBatteryThreshold)
	v.SetDefault("scheduler.pause_while_charging", def.Scheduler.PauseWhileCharging)
	v.SetDefault("scheduler.baseline_delay", def.Scheduler.BaselineDelay)

	v.SetDefault("warmer.min_wave_interval", def.Warmer.MinWaveInterval)
	v.SetDefault("warmer.default_priority", def.Warmer.DefaultPriority)
	v.SetDefault("warmer.sequence_length", def.Warmer.SequenceLength)
	v.SetDefault("warmer.era_length", def.Warmer.EraLength)

	v.SetDefault("migration.progress_key", def.Migration.ProgressKey)
	v.SetDefault("migration.state_key", def.Migration.StateKey)
	v.SetDefault("migration.transaction_key_prefix", def.Migration.TransactionKeyPrefix)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.log_file", def.Observability.LogFile)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
}

func setProviderDefaults(v *viper.Viper, prefix string, p ProviderConfig) {
	v.SetDefault(prefix+".enabled", p.Enabled)
	v.SetDefault(prefix+".confidence_level", p.ConfidenceLevel)
	v.SetDefault(prefix+".requests_per_second", p.RequestsPerSecond)
	v.SetDefault(prefix+".burst_size", p.BurstSize)
	v.SetDefault(prefix+".max_retries", p.MaxRetries)
	v.SetDefault(prefix+".initial_delay", p.InitialDelay)
	v.SetDefault(prefix+".max_delay", p.MaxDelay)
	v.SetDefault(prefix+".backoff_multiplier", p.BackoffMultiplier)
	v.SetDefault(prefix+".jitter", p.Jitter)
	v.SetDefault(prefix+".api_key", p.APIKey)
	v.SetDefault(prefix+".base_url", p.BaseURL)
	v.SetDefault(prefix+".daily_quota", p.DailyQuota)
}

// applyCredentialGating disables providers that require credentials the
// environment doesn't supply (spec §4.4/§6: "Absence disables the
// corresponding provider cleanly").
func applyCredentialGating(cfg *Config) {
	cfg.Providers.TMDB.Enabled = cfg.Providers.TMDB.APIKey != ""
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.Queue.MaxConcurrent < 1 {
		return fmt.Errorf("queue.max_concurrent must be >= 1")
	}
	if cfg.Queue.ProcessingInterval < 100*time.Millisecond {
		return fmt.Errorf("queue.processing_interval must be >= 100ms")
	}
	if cfg.Queue.HistorySize < 1 {
		return fmt.Errorf("queue.history_size must be >= 1")
	}
	if cfg.Scheduler.PeakHourStart < 0 || cfg.Scheduler.PeakHourStart > 23 {
		return fmt.Errorf("scheduler.peak_hour_start must be 0..23")
	}
	if cfg.Scheduler.PeakHourEnd < 0 || cfg.Scheduler.PeakHourEnd > 23 {
		return fmt.Errorf("scheduler.peak_hour_end must be 0..23")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	switch cfg.Cache.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("cache.backend must be one of memory|file|redis, got %q", cfg.Cache.Backend)
	}
	return nil
}
