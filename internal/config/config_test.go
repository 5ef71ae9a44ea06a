package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 32, cfg.Fetch.Concurrency)
	require.Equal(t, 45*time.Second, cfg.FetchTimeout())
	require.Equal(t, 250*time.Millisecond, cfg.SettleDelay())
	require.Contains(t, cfg.Fetch.InvalidationPatterns, "target closed")
	require.Contains(t, cfg.Extract.BoilerplateKeywords, "cookie")
	require.InEpsilon(t, 0.60, cfg.Rank.RelevanceThreshold, 1e-9)
	require.True(t, cfg.Browser.Headless)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
fetch:
  concurrency: 8
  timeout_seconds: 10
  settle_ms: 100
browser:
  user_agent: sift-agent
  headless: false
rank:
  relevance_threshold: 0.75
  embedding_model: text-embedding-3-small
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8, cfg.Fetch.Concurrency)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout())
	require.Equal(t, 100*time.Millisecond, cfg.SettleDelay())
	require.Equal(t, "sift-agent", cfg.Browser.UserAgent)
	require.False(t, cfg.Browser.Headless)
	require.InEpsilon(t, 0.75, cfg.Rank.RelevanceThreshold, 1e-9)
	require.Equal(t, "text-embedding-3-small", cfg.Rank.EmbeddingModel)
	require.False(t, cfg.Logging.Development)
	// Untouched sections keep their defaults.
	require.Contains(t, cfg.Fetch.InvalidationPatterns, "object not found")
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Fetch.Concurrency = 0 }},
		{"zero timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }},
		{"negative settle", func(c *Config) { c.Fetch.SettleMs = -1 }},
		{"no patterns", func(c *Config) { c.Fetch.InvalidationPatterns = nil }},
		{"threshold too big", func(c *Config) { c.Rank.RelevanceThreshold = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
