package config

import (
	"fmt"

	"github.com/danghamo/groupwatch/pkg/logger"
)

// Initialize loads configuration and sets up global logger
func Initialize() (*Config, *logger.Logger, error) {
	cfg, err := Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	logger.SetGlobalLogger(appLogger)

	fields := map[string]interface{}{
		"api_base_url":       cfg.API.BaseURL,
		"refresh_interval":   cfg.Tracker.RefreshInterval,
		"range_radius":       cfg.Tracker.RangeRadius,
		"geolocation_source": cfg.Geolocation.Source,
		"store_driver":       cfg.Store.Driver,
		"events_driver":      cfg.Events.Driver,
		"log_level":          cfg.Log.Level,
	}
	appLogger.WithFields(fields).Debug("Configuration and logger initialized")

	return cfg, appLogger, nil
}

// NewLogger builds the application logger from the log section
func NewLogger(cfg *Config) (*logger.Logger, error) {
	appLogger, err := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Log.Level),
		Environment: cfg.Log.Environment,
		Encoding:    cfg.Log.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return appLogger, nil
}
