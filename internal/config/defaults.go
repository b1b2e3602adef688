package config

import (
	"github.com/hyperjump/eiga/internal/features"
	"github.com/hyperjump/eiga/internal/models"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.ArtifactPath == "" {
		cfg.Storage.ArtifactPath = "/usr/local/var/eiga/data/artifacts.db"
	}
	if cfg.Storage.KeepArtifacts == 0 {
		cfg.Storage.KeepArtifacts = 3
	}
	if cfg.Features.MinTokenLength == 0 {
		cfg.Features.MinTokenLength = features.DefaultMinTokenLength
	}
	if cfg.Recommend.DefaultK == 0 {
		cfg.Recommend.DefaultK = models.DefaultK
	}
	if cfg.Recommend.MaxK == 0 {
		cfg.Recommend.MaxK = models.MaxK
	}
	if cfg.Recommend.MaxK < cfg.Recommend.DefaultK {
		cfg.Recommend.MaxK = cfg.Recommend.DefaultK
	}
	if cfg.Recommend.Suggestions == 0 {
		cfg.Recommend.Suggestions = 3
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}
