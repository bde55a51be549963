// Copyright 2025 James Ross
package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("QUEUE_MAX_CONCURRENT")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Queue.MaxConcurrent != 3 {
		t.Fatalf("expected default max_concurrent 3, got %d", cfg.Queue.MaxConcurrent)
	}
	if cfg.Redis.Addr == "" {
		t.Fatalf("expected default redis addr")
	}
	if cfg.Providers.TMDB.Enabled {
		t.Fatalf("expected tmdb disabled without api key")
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Queue.MaxConcurrent = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for queue.max_concurrent < 1")
	}
	cfg = defaultConfig()
	cfg.Cache.Backend = "bogus"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for invalid cache backend")
	}
	cfg = defaultConfig()
	cfg.Scheduler.PeakHourStart = 30
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for invalid peak hour start")
	}
}

func TestCredentialGatingEnablesWithKey(t *testing.T) {
	os.Setenv("PROVIDERS_TMDB_API_KEY", "test-key")
	defer os.Unsetenv("PROVIDERS_TMDB_API_KEY")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.TMDB.APIKey != "test-key" {
		t.Fatalf("expected api key to be read from env")
	}
	if !cfg.Providers.TMDB.Enabled {
		t.Fatalf("expected tmdb enabled when an api key is present")
	}
}
