// Package config loads and validates collector configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/series-collector/internal/identity"
	"github.com/JakeFAU/series-collector/internal/resolver"
)

// DefaultPath is the configuration file read when no --config flag is given.
const DefaultPath = "config.yaml"

// Config captures every configuration knob loaded via Viper.
type Config struct {
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Series    SeriesConfig    `mapstructure:"series"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Output    OutputConfig    `mapstructure:"output"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CatalogConfig points at the storefront being collected.
type CatalogConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// FetchConfig governs the HTTP page source.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	UserAgents     []string      `mapstructure:"user_agents"`
}

// SeriesConfig controls series listing pagination.
type SeriesConfig struct {
	PageSize  int           `mapstructure:"page_size"`
	PageDelay time.Duration `mapstructure:"page_delay"`
}

// ResolverConfig tunes search result ranking.
type ResolverConfig struct {
	MinSimilarity    float64 `mapstructure:"min_similarity"`
	PreferenceWindow float64 `mapstructure:"preference_window"`
	PreferredMarker  string  `mapstructure:"preferred_marker"`
	// Similarity names the scorer: ratio, levenshtein or jaro-winkler.
	Similarity string `mapstructure:"similarity"`
}

// SchedulerConfig bounds the retry loop.
type SchedulerConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// OutputConfig selects the report format and destination.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Format    string `mapstructure:"format"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for export notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the control API listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from defaults, the file at path (when non-empty) and
// COLLECTOR_* environment variables.
func Load(path string) (Config, error) {
	v := newViper()
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

// EnsureFile writes a config file holding the defaults when path does not
// exist yet. It reports whether a file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create config dir: %w", err)
		}
	}
	v := viper.New()
	setDefaults(v)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return false, fmt.Errorf("write default config: %w", err)
	}
	return true, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.base_url", "https://www.amazon.co.jp")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.rate_limit_rps", 1.0)
	v.SetDefault("fetch.rate_limit_burst", 1)
	v.SetDefault("fetch.user_agents", identity.DefaultUserAgents)
	v.SetDefault("series.page_size", 10)
	v.SetDefault("series.page_delay", "1s")
	v.SetDefault("resolver.min_similarity", 0.3)
	v.SetDefault("resolver.preference_window", 0.2)
	v.SetDefault("resolver.preferred_marker", "文庫")
	v.SetDefault("resolver.similarity", resolver.SimilarityRatio)
	v.SetDefault("scheduler.max_retries", 5)
	v.SetDefault("scheduler.base_delay", "1s")
	v.SetDefault("scheduler.max_delay", "0s")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.format", "html")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.prefix", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.Catalog.BaseURL, "http") {
		return fmt.Errorf("catalog.base_url must be an http(s) URL")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.RateLimitRPS < 0 {
		return fmt.Errorf("fetch.rate_limit_rps must be >= 0")
	}
	if len(c.Fetch.UserAgents) == 0 {
		return fmt.Errorf("fetch.user_agents must not be empty")
	}
	if c.Series.PageSize <= 0 {
		return fmt.Errorf("series.page_size must be > 0")
	}
	if c.Series.PageDelay < 0 {
		return fmt.Errorf("series.page_delay must be >= 0")
	}
	if c.Resolver.MinSimilarity < 0 || c.Resolver.MinSimilarity >= 1 {
		return fmt.Errorf("resolver.min_similarity must be in [0,1)")
	}
	if _, err := resolver.ParseSimilarity(c.Resolver.Similarity); err != nil {
		return fmt.Errorf("resolver.similarity: %w", err)
	}
	if c.Resolver.PreferenceWindow < 0 {
		return fmt.Errorf("resolver.preference_window must be >= 0")
	}
	if c.Scheduler.MaxRetries <= 0 {
		return fmt.Errorf("scheduler.max_retries must be > 0")
	}
	if c.Scheduler.BaseDelay < 0 {
		return fmt.Errorf("scheduler.base_delay must be >= 0")
	}
	if c.Scheduler.MaxDelay != 0 && c.Scheduler.MaxDelay < c.Scheduler.BaseDelay {
		return fmt.Errorf("scheduler.max_delay must be 0 or >= scheduler.base_delay")
	}
	switch c.Output.Format {
	case "html", "json":
	default:
		return fmt.Errorf("output.format must be html or json")
	}
	if c.Output.GCSBucket == "" && c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set when output.gcs_bucket is empty")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}
