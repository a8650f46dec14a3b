package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Sample store
	DBPath string

	// Upstream status source
	SourceURL     string
	SourceTimeout time.Duration

	// Artifact directory (statistics.json, downtimes.json, log files)
	DataDir string

	// Cadences
	PollInterval      time.Duration // sleep between iterations
	StatsInterval     time.Duration // statistics snapshot refresh
	NotifyInterval    time.Duration // notification dispatch
	RetentionInterval time.Duration // retention enforcement

	// Retention horizons
	RetentionDays    int // sample retention in the store
	LogRetentionDays int // rotated log files on disk
}

// Load reads configuration from .env and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetDefault("DB_PATH", "./data/cimon.db")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("SOURCE_TIMEOUT_SECONDS", 30)
	viper.SetDefault("POLL_SECONDS", 300)
	viper.SetDefault("STATS_INTERVAL_SECONDS", 3600)
	viper.SetDefault("NOTIFY_INTERVAL_SECONDS", 300)
	viper.SetDefault("RETENTION_INTERVAL_SECONDS", 86400)
	viper.SetDefault("RETENTION_DAYS", 185)
	viper.SetDefault("LOG_RETENTION_DAYS", 30)
	viper.AutomaticEnv()

	cfg := &Config{
		DBPath:            viper.GetString("DB_PATH"),
		SourceURL:         viper.GetString("SOURCE_URL"),
		SourceTimeout:     durSecs("SOURCE_TIMEOUT_SECONDS"),
		DataDir:           viper.GetString("DATA_DIR"),
		PollInterval:      durSecs("POLL_SECONDS"),
		StatsInterval:     durSecs("STATS_INTERVAL_SECONDS"),
		NotifyInterval:    durSecs("NOTIFY_INTERVAL_SECONDS"),
		RetentionInterval: durSecs("RETENTION_INTERVAL_SECONDS"),
		RetentionDays:     viper.GetInt("RETENTION_DAYS"),
		LogRetentionDays:  viper.GetInt("LOG_RETENTION_DAYS"),
	}

	if cfg.SourceURL == "" {
		return nil, errors.New("SOURCE_URL is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_SECONDS must be positive")
	}
	if cfg.RetentionDays <= 0 {
		return nil, errors.New("RETENTION_DAYS must be positive")
	}

	return cfg, nil
}

func durSecs(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}
