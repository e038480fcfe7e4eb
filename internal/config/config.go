// Package config loads and validates media-inliner configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures every configuration knob the media inliner and its
// reference collaborators need.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Inliner InlinerConfig `mapstructure:"inliner"`
	Storage StorageConfig `mapstructure:"storage"`
	CMS     CMSConfig     `mapstructure:"cms"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig describes the admin HTTP surface. Port is loaded but not read:
// the serve command takes its port from its --port flag.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// InlinerConfig governs the Queue Manager. Domains is loaded but not read:
// StartMediaInliner uses the domains its caller passes, or the built-in
// default when there are none.
type InlinerConfig struct {
	Domains                        []string `mapstructure:"domains"`
	BaseWaitOnRetryMs              int64    `mapstructure:"base_wait_on_retry_ms"`
	DefaultRequestIntervalMs       int64    `mapstructure:"default_request_interval_ms"`
	MaxConcurrentRequestsPerDomain int      `mapstructure:"max_concurrent_requests_per_domain"`
	MaxRequestIntervalMs           int64    `mapstructure:"max_request_interval_ms"`
	MinRequestIntervalMs           int64    `mapstructure:"min_request_interval_ms"`
	MaxRetries                     int      `mapstructure:"max_retries"`
	MinExpectedResponseTimeMs      int64    `mapstructure:"min_expected_response_time_ms"`
	RetryableStatusCodes           []int    `mapstructure:"retryable_status_codes"`
}

// StorageConfig selects a backend per media class and the extension table
// used to route a fetched asset to one of those classes.
type StorageConfig struct {
	Images StorageBackend `mapstructure:"images"`
	Media  StorageBackend `mapstructure:"media"`
	Files  StorageBackend `mapstructure:"files"`
}

// StorageBackend configures one of the three media-class adapters.
type StorageBackend struct {
	Driver     string   `mapstructure:"driver"` // "local" or "gcs"
	BaseDir    string   `mapstructure:"base_dir"`
	Bucket     string   `mapstructure:"bucket"`
	Prefix     string   `mapstructure:"prefix"`
	Extensions []string `mapstructure:"extensions"`
}

// CMSConfig points at the reference Postgres-backed collaborator store.
type CMSConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// NotifyConfig enables the optional job-completion Pub/Sub event.
type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development mode.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from an optional file plus CRAWLER_-prefixed
// environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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

// Validate rejects configurations the rest of the system cannot operate
// under safely.
func (c Config) Validate() error {
	if c.Inliner.MaxConcurrentRequestsPerDomain < 1 {
		return fmt.Errorf("inliner.max_concurrent_requests_per_domain must be >= 1")
	}
	if c.Inliner.MinRequestIntervalMs > c.Inliner.MaxRequestIntervalMs {
		return fmt.Errorf("inliner.min_request_interval_ms must be <= max_request_interval_ms")
	}
	if c.Inliner.MaxRetries < 0 {
		return fmt.Errorf("inliner.max_retries must be >= 0")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("inliner.domains", []string{})
	v.SetDefault("inliner.base_wait_on_retry_ms", 500)
	v.SetDefault("inliner.default_request_interval_ms", 1000)
	v.SetDefault("inliner.max_concurrent_requests_per_domain", 2)
	v.SetDefault("inliner.max_request_interval_ms", 15_000)
	v.SetDefault("inliner.min_request_interval_ms", 250)
	v.SetDefault("inliner.max_retries", 3)
	v.SetDefault("inliner.min_expected_response_time_ms", 800)
	v.SetDefault("inliner.retryable_status_codes", []int{429, 408, 502, 503, 504})

	v.SetDefault("storage.images.driver", "local")
	v.SetDefault("storage.images.base_dir", "content/images")
	v.SetDefault("storage.images.extensions", []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"})
	v.SetDefault("storage.media.driver", "local")
	v.SetDefault("storage.media.base_dir", "content/media")
	v.SetDefault("storage.media.extensions", []string{".mp4", ".mp3", ".webm", ".mov"})
	v.SetDefault("storage.files.driver", "local")
	v.SetDefault("storage.files.base_dir", "content/files")
	v.SetDefault("storage.files.extensions", []string{".pdf", ".zip", ".csv"})

	v.SetDefault("cms.max_open_conns", 10)

	v.SetDefault("notify.enabled", false)

	v.SetDefault("logging.development", true)
}

// DefaultDomains lists the same two built-in legacy CDN domains as
// inline.DefaultDomains. The orchestrator falls back to inline.DefaultDomains;
// nothing in this module reads this copy.
var DefaultDomains = []string{
	"https://s3.amazonaws.com/revue",
	"https://substackcdn.com",
}
