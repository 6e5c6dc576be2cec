// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/horsie/harvester/internal/candidate"
	"github.com/horsie/harvester/internal/logging"
	"github.com/horsie/harvester/internal/storage"
)

// EnvPrefix namespaces environment overrides, e.g. HARVESTER_FETCH_TIMEOUT.
const EnvPrefix = "HARVESTER"

// Config captures all knobs loaded via Viper.
type Config struct {
	Logging    logging.Config   `mapstructure:"logging"`
	Source     SourceConfig     `mapstructure:"source"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Candidates candidate.Tables `mapstructure:"candidates"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Filter     FilterConfig     `mapstructure:"filter"`
	Output     OutputConfig     `mapstructure:"output"`
	Storage    storage.Config   `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Server     ServerConfig     `mapstructure:"server"`
}

// SourceConfig describes the site being harvested.
type SourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	Accept         string `mapstructure:"accept"`
	AcceptLanguage string `mapstructure:"accept_language"`
	VideoURL       string `mapstructure:"video_url"`
}

// FetchConfig governs a single page request and outbound pacing.
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MinBodyBytes int           `mapstructure:"min_body_bytes"`
	Marker       string        `mapstructure:"marker"`
	MaxRPS       float64       `mapstructure:"max_rps"`
	Burst        int           `mapstructure:"burst"`
}

// ScheduleConfig controls batching.
type ScheduleConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	MaxCandidates int           `mapstructure:"max_candidates"`
	Pause         time.Duration `mapstructure:"pause"`
	LogEvery      int           `mapstructure:"log_every"`
}

// FilterConfig controls record acceptance.
type FilterConfig struct {
	Lookback      time.Duration `mapstructure:"lookback"`
	Lookahead     time.Duration `mapstructure:"lookahead"`
	MinRunners    int           `mapstructure:"min_runners"`
	GenericTitles []string      `mapstructure:"generic_titles"`
}

// OutputConfig names the artifacts inside the storage backend.
type OutputConfig struct {
	DatasetPath string `mapstructure:"dataset_path"`
	SummaryPath string `mapstructure:"summary_path"`
}

// DBConfig controls the optional Postgres run sink. Empty DSN disables it.
type DBConfig struct {
	DSN        string `mapstructure:"dsn"`
	RacesTable string `mapstructure:"table"`
	RunsTable  string `mapstructure:"runs_table"`
	MaxConns   int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds the optional run notification target. Empty Topic disables it.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the end-of-run Pushgateway push. Empty URL disables it.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// ServerConfig controls the read-only HTTP view.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Load builds a Config from defaults, an optional file, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("source.base_url", "https://en.netkeiba.com")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("source.accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	v.SetDefault("source.accept_language", "en-US,en;q=0.9")
	v.SetDefault("source.video_url", "https://japanracing.jp/en/")
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.min_body_bytes", 5000)
	v.SetDefault("fetch.marker", "Field")
	v.SetDefault("fetch.max_rps", 0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("candidates.year", 0)
	v.SetDefault("candidates.venues", candidate.DefaultVenues)
	v.SetDefault("candidates.meetings", candidate.DefaultMeetings)
	v.SetDefault("candidates.days", candidate.DefaultDays)
	v.SetDefault("candidates.races", candidate.DefaultRaces)
	v.SetDefault("schedule.batch_size", 15)
	v.SetDefault("schedule.max_candidates", 3000)
	v.SetDefault("schedule.pause", "400ms")
	v.SetDefault("schedule.log_every", 10)
	v.SetDefault("filter.lookback", "504h")
	v.SetDefault("filter.lookahead", "168h")
	v.SetDefault("filter.min_runners", 4)
	v.SetDefault("filter.generic_titles", []string{"netkeiba"})
	v.SetDefault("output.dataset_path", "races.json")
	v.SetDefault("output.summary_path", "summary.json")
	v.SetDefault("storage.backend", storage.BackendLocal)
	v.SetDefault("storage.local.base_dir", "data")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "races")
	v.SetDefault("db.runs_table", "harvest_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "harvester")
	v.SetDefault("server.port", 8080)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Source.BaseURL) == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.MinBodyBytes < 0 {
		return fmt.Errorf("fetch.min_body_bytes must be >= 0")
	}
	if c.Fetch.MaxRPS < 0 {
		return fmt.Errorf("fetch.max_rps must be >= 0")
	}
	if c.Schedule.BatchSize <= 0 {
		return fmt.Errorf("schedule.batch_size must be > 0")
	}
	if c.Schedule.MaxCandidates <= 0 {
		return fmt.Errorf("schedule.max_candidates must be > 0")
	}
	if c.Schedule.Pause < 0 {
		return fmt.Errorf("schedule.pause must be >= 0")
	}
	if c.Filter.Lookback <= 0 {
		return fmt.Errorf("filter.lookback must be > 0")
	}
	// The filter treats a zero window edge as unset, so zero is not a valid setting.
	if c.Filter.Lookahead <= 0 {
		return fmt.Errorf("filter.lookahead must be > 0")
	}
	if c.Filter.MinRunners <= 0 {
		return fmt.Errorf("filter.min_runners must be > 0")
	}
	if c.Output.DatasetPath == "" || c.Output.SummaryPath == "" {
		return fmt.Errorf("output.dataset_path and output.summary_path are required")
	}
	if c.Output.DatasetPath == c.Output.SummaryPath {
		return fmt.Errorf("output.dataset_path and output.summary_path must differ")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case storage.BackendLocal, storage.BackendMemory:
	case storage.BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, gcs, memory", c.Storage.Backend)
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	tables := c.Candidates
	if tables.Year == 0 {
		tables.Year = time.Now().Year()
	}
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("invalid candidates: %w", err)
	}
	return nil
}

// Tables returns the candidate tables, taking the year from now when unset.
func (c Config) Tables(now time.Time) candidate.Tables {
	t := c.Candidates
	if t.Year == 0 {
		t.Year = now.Year()
	}
	return t
}
