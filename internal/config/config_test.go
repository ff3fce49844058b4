package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		APIURL:              "http://localhost:8000",
		LogLevel:            "info",
		StateDir:            "/tmp/smartcheck",
		HTTPTimeout:         time.Minute,
		MaxRetries:          3,
		PollInterval:        3 * time.Second,
		StageThresholds:     "10,30,55,80",
		PlaceholderDuration: time.Minute,
		PlaceholderCeiling:  90,
		BreakerThreshold:    5,
		BreakerTimeout:      30 * time.Second,
		MaxUploadBytes:      1024,
		SourceType:          SourceDir,
		ScanDir:             ".",
		DownloadConcurrency: 4,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad url", func(c *Config) { c.APIURL = "localhost:8000" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"bad thresholds", func(c *Config) { c.StageThresholds = "30,10,55,80" }, true},
		{"ceiling 100", func(c *Config) { c.PlaceholderCeiling = 100 }, true},
		{"zero upload limit", func(c *Config) { c.MaxUploadBytes = 0 }, true},
		{"unknown source", func(c *Config) { c.SourceType = "ftp" }, true},
		{"feed without url", func(c *Config) { c.SourceType = SourceFeed }, true},
		{"feed with url", func(c *Config) { c.SourceType = SourceFeed; c.FeedURL = "http://scanner" }, false},
		{"zero concurrency", func(c *Config) { c.DownloadConcurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SMARTCHECK_STATE_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, int64(52428800), cfg.MaxUploadBytes)
	assert.Equal(t, SourceDir, cfg.SourceType)
	assert.Equal(t, []string{"upload", "scan", "split", "structure", "matching"}, cfg.Stages().Names())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "smartcheck.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
api_url: https://backoffice.bank.test
poll_interval: 10s
stage_thresholds: "5,20,50,75"
`), 0o600))
	t.Setenv("SMARTCHECK_STATE_DIR", dir)
	t.Setenv("SMARTCHECK_POLL_INTERVAL", "1s")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Equal(t, "https://backoffice.bank.test", cfg.APIURL)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 1, cfg.Stages().Index(5))
	assert.Equal(t, filepath.Join(dir, "session.json"), cfg.SessionPath())
	assert.Equal(t, filepath.Join(dir, "smartcheck.db"), cfg.DatabasePath())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("SMARTCHECK_STATE_DIR", t.TempDir())
	t.Setenv("SMARTCHECK_SOURCE_TYPE", "feed")
	t.Chdir(t.TempDir())

	_, err := Load(viper.New(), "")
	assert.ErrorContains(t, err, "SMARTCHECK_FEED_URL")
}
