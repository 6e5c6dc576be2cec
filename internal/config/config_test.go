package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/horsie/harvester/internal/candidate"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Fetch.Timeout != 10*time.Second || cfg.Fetch.MinBodyBytes != 5000 || cfg.Fetch.Marker != "Field" {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.Schedule.BatchSize != 15 || cfg.Schedule.MaxCandidates != 3000 || cfg.Schedule.Pause != 400*time.Millisecond {
		t.Fatalf("unexpected schedule defaults: %+v", cfg.Schedule)
	}
	if cfg.Filter.Lookback != 21*24*time.Hour || cfg.Filter.Lookahead != 7*24*time.Hour || cfg.Filter.MinRunners != 4 {
		t.Fatalf("unexpected filter defaults: %+v", cfg.Filter)
	}
	if cfg.Storage.Backend != "local" || cfg.Storage.Local.BaseDir != "data" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Output.DatasetPath != "races.json" || cfg.Output.SummaryPath != "summary.json" {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}

	tables := cfg.Tables(time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC))
	if tables.Year != 2025 {
		t.Fatalf("expected year from clock, got %d", tables.Year)
	}
	if candidate.Size(tables) != 7200 {
		t.Fatalf("expected 7200 default candidates, got %d", candidate.Size(tables))
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: true
  level: debug
source:
  base_url: http://mirror.local
fetch:
  timeout: 3s
  max_rps: 2.5
  burst: 3
candidates:
  year: 2024
  venues: ["05", "06"]
  meetings: ["01"]
  days: ["01", "02"]
  races: ["11"]
schedule:
  batch_size: 5
  pause: 1s
filter:
  lookback: 72h
  min_runners: 6
storage:
  backend: gcs
  gcs:
    bucket: horsie-artifacts
    prefix: harvests
pubsub:
  project_id: horsie
  topic: harvest-runs
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging overrides, got %+v", cfg.Logging)
	}
	if cfg.Source.BaseURL != "http://mirror.local" {
		t.Fatalf("expected base url override, got %q", cfg.Source.BaseURL)
	}
	if cfg.Fetch.Timeout != 3*time.Second || cfg.Fetch.MaxRPS != 2.5 || cfg.Fetch.Burst != 3 {
		t.Fatalf("expected fetch overrides, got %+v", cfg.Fetch)
	}
	tables := cfg.Tables(time.Now())
	if tables.Year != 2024 || candidate.Size(tables) != 4 {
		t.Fatalf("expected 4 candidates for 2024, got %+v", tables)
	}
	if cfg.Schedule.BatchSize != 5 || cfg.Schedule.Pause != time.Second {
		t.Fatalf("expected schedule overrides, got %+v", cfg.Schedule)
	}
	if cfg.Filter.Lookback != 72*time.Hour || cfg.Filter.MinRunners != 6 {
		t.Fatalf("expected filter overrides, got %+v", cfg.Filter)
	}
	if cfg.Storage.Backend != "gcs" || cfg.Storage.GCS.Bucket != "horsie-artifacts" || cfg.Storage.GCS.Prefix != "harvests" {
		t.Fatalf("expected storage overrides, got %+v", cfg.Storage)
	}
	if cfg.PubSub.Topic != "harvest-runs" {
		t.Fatalf("expected pubsub topic, got %+v", cfg.PubSub)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_SCHEDULE_BATCH_SIZE", "30")
	t.Setenv("HARVESTER_FILTER_LOOKAHEAD", "48h")
	t.Setenv("HARVESTER_DB_DSN", "postgres://localhost/horsie")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Schedule.BatchSize != 30 {
		t.Fatalf("expected batch size 30, got %d", cfg.Schedule.BatchSize)
	}
	if cfg.Filter.Lookahead != 48*time.Hour {
		t.Fatalf("expected lookahead 48h, got %v", cfg.Filter.Lookahead)
	}
	if cfg.DB.DSN != "postgres://localhost/horsie" {
		t.Fatalf("expected dsn from env, got %q", cfg.DB.DSN)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"missing base url", func(c *Config) { c.Source.BaseURL = " " }, "source.base_url"},
		{"invalid timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout"},
		{"negative rps", func(c *Config) { c.Fetch.MaxRPS = -1 }, "fetch.max_rps"},
		{"invalid batch size", func(c *Config) { c.Schedule.BatchSize = 0 }, "schedule.batch_size"},
		{"invalid cap", func(c *Config) { c.Schedule.MaxCandidates = 0 }, "schedule.max_candidates"},
		{"negative pause", func(c *Config) { c.Schedule.Pause = -time.Second }, "schedule.pause"},
		{"invalid window", func(c *Config) { c.Filter.Lookback = 0 }, "filter.lookback"},
		{"zero lookahead", func(c *Config) { c.Filter.Lookahead = 0 }, "filter.lookahead"},
		{"negative lookahead", func(c *Config) { c.Filter.Lookahead = -time.Hour }, "filter.lookahead"},
		{"invalid min runners", func(c *Config) { c.Filter.MinRunners = 0 }, "filter.min_runners"},
		{"same output paths", func(c *Config) { c.Output.SummaryPath = c.Output.DatasetPath }, "must differ"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.gcs.bucket"},
		{"topic without project", func(c *Config) { c.PubSub.Topic = "runs" }, "pubsub.project_id"},
		{"bad venue code", func(c *Config) { c.Candidates.Venues = []string{"5"} }, "candidates.venues"},
		{"bad year", func(c *Config) { c.Candidates.Year = 25 }, "candidates.year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Candidates.Venues = append([]string(nil), base.Candidates.Venues...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
