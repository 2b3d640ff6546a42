package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/series-collector/internal/identity"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://www.amazon.co.jp", cfg.Catalog.BaseURL)
	require.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	require.Equal(t, identity.DefaultUserAgents, cfg.Fetch.UserAgents)
	require.Equal(t, 10, cfg.Series.PageSize)
	require.Equal(t, time.Second, cfg.Series.PageDelay)
	require.InDelta(t, 0.3, cfg.Resolver.MinSimilarity, 1e-9)
	require.Equal(t, "ratio", cfg.Resolver.Similarity)
	require.InDelta(t, 0.2, cfg.Resolver.PreferenceWindow, 1e-9)
	require.Equal(t, "文庫", cfg.Resolver.PreferredMarker)
	require.Equal(t, 5, cfg.Scheduler.MaxRetries)
	require.Equal(t, time.Second, cfg.Scheduler.BaseDelay)
	require.Zero(t, cfg.Scheduler.MaxDelay)
	require.Equal(t, "output", cfg.Output.Dir)
	require.Equal(t, "html", cfg.Output.Format)
	require.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
catalog:
  base_url: https://books.example.test
fetch:
  timeout: 5s
  user_agents: ["agent-a", "agent-b"]
series:
  page_delay: 250ms
scheduler:
  max_retries: 3
  base_delay: 2s
  max_delay: 8s
output:
  format: json
  gcs_bucket: reports
  prefix: runs
pubsub:
  project_id: proj
  topic_name: exports
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://books.example.test", cfg.Catalog.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	require.Equal(t, []string{"agent-a", "agent-b"}, cfg.Fetch.UserAgents)
	require.Equal(t, 250*time.Millisecond, cfg.Series.PageDelay)
	require.Equal(t, 3, cfg.Scheduler.MaxRetries)
	require.Equal(t, 8*time.Second, cfg.Scheduler.MaxDelay)
	require.Equal(t, "json", cfg.Output.Format)
	require.Equal(t, "reports", cfg.Output.GCSBucket)
	require.Equal(t, "exports", cfg.PubSub.TopicName)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestEnsureFileCreatesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	created, err := EnsureFile(path)
	require.NoError(t, err)
	require.True(t, created)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Scheduler.MaxRetries)
	require.Equal(t, "文庫", cfg.Resolver.PreferredMarker)

	created, err = EnsureFile(path)
	require.NoError(t, err)
	require.False(t, created)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"base url", func(c *Config) { c.Catalog.BaseURL = "ftp://x" }, "catalog.base_url"},
		{"timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout"},
		{"user agents", func(c *Config) { c.Fetch.UserAgents = nil }, "fetch.user_agents"},
		{"page size", func(c *Config) { c.Series.PageSize = 0 }, "series.page_size"},
		{"similarity", func(c *Config) { c.Resolver.MinSimilarity = 1 }, "resolver.min_similarity"},
		{"scorer", func(c *Config) { c.Resolver.Similarity = "cosine" }, "resolver.similarity"},
		{"retries", func(c *Config) { c.Scheduler.MaxRetries = 0 }, "scheduler.max_retries"},
		{"max delay", func(c *Config) { c.Scheduler.MaxDelay = time.Millisecond }, "scheduler.max_delay"},
		{"format", func(c *Config) { c.Output.Format = "pdf" }, "output.format"},
		{"output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"pubsub", func(c *Config) { c.PubSub.ProjectID = "proj" }, "pubsub.project_id"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Fetch.UserAgents = append([]string(nil), base.Fetch.UserAgents...)
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
