// Package config loads and validates websift configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Browser BrowserConfig `mapstructure:"browser"`
	Extract ExtractConfig `mapstructure:"extract"`
	Rank    RankConfig    `mapstructure:"rank"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// FetchConfig governs the fetch orchestrator and per-URL retry behavior.
type FetchConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	SettleMs       int `mapstructure:"settle_ms"`
	// InvalidationPatterns are the diagnostic substrings that mark a failed
	// page operation as session invalidation rather than a generic failure.
	InvalidationPatterns []string `mapstructure:"invalidation_patterns"`
}

// BrowserConfig configures the headless Chrome session.
type BrowserConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	Headless  bool   `mapstructure:"headless"`
}

// ExtractConfig tunes the boilerplate filter.
type ExtractConfig struct {
	BoilerplateKeywords []string `mapstructure:"boilerplate_keywords"`
}

// RankConfig controls relevance ranking of extracted documents.
type RankConfig struct {
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
	EmbeddingModel     string  `mapstructure:"embedding_model"`
	APIKeyEnv          string  `mapstructure:"api_key_env"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBSIFT")
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
	v.SetDefault("fetch.concurrency", 32)
	v.SetDefault("fetch.timeout_seconds", 45)
	v.SetDefault("fetch.settle_ms", 250)
	v.SetDefault("fetch.invalidation_patterns", []string{
		"object not found",
		"target closed",
		"session closed",
		"browser has been closed",
		"websocket: close",
	})
	v.SetDefault("browser.user_agent", "websift/1.0 (+https://github.com/websift/websift)")
	v.SetDefault("browser.headless", true)
	v.SetDefault("extract.boilerplate_keywords", []string{
		"nav", "navbar", "menu", "footer", "header", "sidebar",
		"breadcrumb", "breadcrumbs", "cookie", "consent", "subscribe", "newsletter",
	})
	v.SetDefault("rank.relevance_threshold", 0.60)
	v.SetDefault("rank.embedding_model", "text-embedding-3-large")
	v.SetDefault("rank.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.SettleMs < 0 {
		return fmt.Errorf("fetch.settle_ms must be >= 0")
	}
	if len(c.Fetch.InvalidationPatterns) == 0 {
		return fmt.Errorf("fetch.invalidation_patterns must not be empty")
	}
	if c.Rank.RelevanceThreshold < 0 || c.Rank.RelevanceThreshold > 1 {
		return fmt.Errorf("rank.relevance_threshold must be in [0, 1]")
	}
	return nil
}

// FetchTimeout converts the per-URL timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// SettleDelay converts the post-navigation settle wait into a duration.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Fetch.SettleMs) * time.Millisecond
}
