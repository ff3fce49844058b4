package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smartcheck/internal/core/progress"
)

const EnvPrefix = "SMARTCHECK"

const (
	SourceDir  = "dir"
	SourceFeed = "feed"
)

type Config struct {
	APIURL   string `mapstructure:"api_url"`
	LogLevel string `mapstructure:"log_level"`
	StateDir string `mapstructure:"state_dir"`

	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`

	PollInterval        time.Duration `mapstructure:"poll_interval"`
	StageThresholds     string        `mapstructure:"stage_thresholds"`
	PlaceholderDuration time.Duration `mapstructure:"placeholder_duration"`
	PlaceholderCeiling  int           `mapstructure:"placeholder_ceiling"`
	BreakerThreshold    int           `mapstructure:"breaker_threshold"`
	BreakerTimeout      time.Duration `mapstructure:"breaker_timeout"`

	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	SourceType     string `mapstructure:"source_type"`
	ScanDir        string `mapstructure:"scan_dir"`
	FeedURL        string `mapstructure:"feed_url"`
	FeedUsername   string `mapstructure:"feed_username"`
	FeedPassword   string `mapstructure:"feed_password"`

	DownloadConcurrency int `mapstructure:"download_concurrency"`
}

// SetDefaults registers every key so environment variables bind even when no
// config file exists.
func SetDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault("api_url", "http://localhost:8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("state_dir", filepath.Join(home, ".smartcheck"))
	v.SetDefault("http_timeout", 5*time.Minute)
	v.SetDefault("max_retries", 3)
	v.SetDefault("poll_interval", 3*time.Second)
	v.SetDefault("stage_thresholds", "10,30,55,80")
	v.SetDefault("placeholder_duration", time.Minute)
	v.SetDefault("placeholder_ceiling", 90)
	v.SetDefault("breaker_threshold", 5)
	v.SetDefault("breaker_timeout", 30*time.Second)
	v.SetDefault("max_upload_bytes", int64(50<<20))
	v.SetDefault("source_type", SourceDir)
	v.SetDefault("scan_dir", ".")
	v.SetDefault("feed_url", "")
	v.SetDefault("feed_username", "")
	v.SetDefault("feed_password", "")
	v.SetDefault("download_concurrency", 4)
}

// Load reads defaults, an optional config file and SMARTCHECK_* environment
// variables, in increasing priority. An empty configFile looks for
// smartcheck.yaml in the current directory and the default state directory.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("smartcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(v.GetString("state_dir"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SMARTCHECK_API_URL must be an http(s) URL, got %q", c.APIURL)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("SMARTCHECK_LOG_LEVEL must be one of debug, info, warn, error")
	}

	if c.StateDir == "" {
		return fmt.Errorf("SMARTCHECK_STATE_DIR is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("SMARTCHECK_HTTP_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("SMARTCHECK_MAX_RETRIES cannot be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("SMARTCHECK_POLL_INTERVAL must be positive")
	}
	if _, err := progress.ParseThresholds(c.StageThresholds); err != nil {
		return fmt.Errorf("SMARTCHECK_STAGE_THRESHOLDS: %w", err)
	}
	if c.PlaceholderDuration < 0 {
		return fmt.Errorf("SMARTCHECK_PLACEHOLDER_DURATION cannot be negative")
	}
	if c.PlaceholderCeiling < 0 || c.PlaceholderCeiling > 99 {
		return fmt.Errorf("SMARTCHECK_PLACEHOLDER_CEILING must be between 0 and 99")
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("SMARTCHECK_BREAKER_THRESHOLD must be at least 1")
	}
	if c.BreakerTimeout <= 0 {
		return fmt.Errorf("SMARTCHECK_BREAKER_TIMEOUT must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("SMARTCHECK_MAX_UPLOAD_BYTES must be positive")
	}

	switch c.SourceType {
	case SourceDir:
	case SourceFeed:
		if c.FeedURL == "" {
			return fmt.Errorf("SMARTCHECK_FEED_URL is required when SMARTCHECK_SOURCE_TYPE is feed")
		}
	default:
		return fmt.Errorf("SMARTCHECK_SOURCE_TYPE must be %q or %q", SourceDir, SourceFeed)
	}

	if c.DownloadConcurrency < 1 {
		return fmt.Errorf("SMARTCHECK_DOWNLOAD_CONCURRENCY must be at least 1")
	}
	return nil
}

// Stages returns the configured pipeline stages.
func (c *Config) Stages() progress.Stages {
	s, err := progress.ParseThresholds(c.StageThresholds)
	if err != nil {
		return progress.DefaultStages()
	}
	return s
}

func (c *Config) Placeholder() progress.Placeholder {
	return progress.Placeholder{Duration: c.PlaceholderDuration, Ceiling: c.PlaceholderCeiling}
}

func (c *Config) SessionPath() string {
	return filepath.Join(c.StateDir, "session.json")
}

func (c *Config) DatabasePath() string {
	return filepath.Join(c.StateDir, "smartcheck.db")
}
