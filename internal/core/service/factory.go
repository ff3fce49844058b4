package service

import (
	"path/filepath"

	"go.uber.org/zap"

	"smartcheck/internal/adapters/source"
	"smartcheck/internal/config"
	"smartcheck/internal/core/domain/ports"
)

// CreateScanSource builds the configured scan source and the key its
// watermark is stored under.
func CreateScanSource(cfg *config.Config, logger *zap.Logger) (ports.ScanSource, string) {
	switch cfg.SourceType {
	case config.SourceFeed:
		return source.NewFeedSource(cfg.FeedURL, cfg.FeedUsername, cfg.FeedPassword, cfg.MaxUploadBytes, logger), "feed:" + cfg.FeedURL
	default:
		dir := cfg.ScanDir
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		return source.NewDirSource(dir, logger), "dir:" + dir
	}
}
