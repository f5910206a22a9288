package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Tracker     TrackerConfig     `mapstructure:"tracker"`
	Geolocation GeolocationConfig `mapstructure:"geolocation"`
	Store       StoreConfig       `mapstructure:"store"`
	Events      EventsConfig      `mapstructure:"events"`
	View        ViewConfig        `mapstructure:"view"`
	Log         LogConfig         `mapstructure:"log"`
}

// APIConfig holds the remote group service settings
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=1"`
}

// TrackerConfig holds the sync, geofence and expiry settings
type TrackerConfig struct {
	RefreshInterval int           `mapstructure:"refresh_interval"`
	RangeRadius     int           `mapstructure:"range_radius"`
	AlertCooldown   time.Duration `mapstructure:"alert_cooldown" validate:"gt=0"`
	AlertQueueSize  int           `mapstructure:"alert_queue_size" validate:"gte=1"`
	ExitDelay       time.Duration `mapstructure:"exit_delay" validate:"gte=0"`
	FixTimeout      time.Duration `mapstructure:"fix_timeout" validate:"gt=0"`
	HighAccuracy    bool          `mapstructure:"high_accuracy"`
}

// GeolocationConfig selects and configures the position source
type GeolocationConfig struct {
	Source string     `mapstructure:"source" validate:"oneof=mqtt replay none"`
	MQTT   MQTTConfig `mapstructure:"mqtt"`
	Replay string     `mapstructure:"replay"`
}

// MQTTConfig holds the broker settings for device-fed fixes
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// StoreConfig selects the identity/group metadata backend
type StoreConfig struct {
	Driver     string `mapstructure:"driver" validate:"oneof=memory sqlite redis"`
	SQLitePath string `mapstructure:"sqlite_path"`
	RedisURL   string `mapstructure:"redis_url"`
}

// EventsConfig selects the event bus transport
type EventsConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=gochannel redis"`
	RedisURL string `mapstructure:"redis_url"`
}

// ViewConfig holds the local live view server settings
type ViewConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port" validate:"gte=1,lte=65535"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
	Encoding    string `mapstructure:"encoding"`
}

// Allowed UI choices for the poll cadence (seconds) and geofence radius (meters)
var (
	RefreshIntervals = []int{10, 30, 60}
	RangeRadii       = []int{100, 200, 300}
)

// Load loads configuration from .env, config files and environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("$HOME/.groupwatch")

	v.SetEnvPrefix("GROUPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:3000/api")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.requests_per_second", 5)
	v.SetDefault("api.burst", 10)

	v.SetDefault("tracker.refresh_interval", 30)
	v.SetDefault("tracker.range_radius", 100)
	v.SetDefault("tracker.alert_cooldown", "2m")
	v.SetDefault("tracker.alert_queue_size", 5)
	v.SetDefault("tracker.exit_delay", "2s")
	v.SetDefault("tracker.fix_timeout", "10s")
	v.SetDefault("tracker.high_accuracy", true)

	v.SetDefault("geolocation.source", "none")
	v.SetDefault("geolocation.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("geolocation.mqtt.client_id", "groupwatch")
	v.SetDefault("geolocation.mqtt.topic_prefix", "groupwatch")
	v.SetDefault("geolocation.replay", "")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "groupwatch.db")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")

	v.SetDefault("events.driver", "gochannel")
	v.SetDefault("events.redis_url", "redis://localhost:6379/0")

	v.SetDefault("view.enabled", false)
	v.SetDefault("view.host", "localhost")
	v.SetDefault("view.port", 8090)
	v.SetDefault("view.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "development")
	v.SetDefault("log.encoding", "console")
}

// Validate checks struct tags first, then the cross-field rules tags can't express
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	if !containsInt(RefreshIntervals, cfg.Tracker.RefreshInterval) {
		return fmt.Errorf("refresh interval must be one of %v, got %d", RefreshIntervals, cfg.Tracker.RefreshInterval)
	}

	if !containsInt(RangeRadii, cfg.Tracker.RangeRadius) {
		return fmt.Errorf("range radius must be one of %v, got %d", RangeRadii, cfg.Tracker.RangeRadius)
	}

	switch cfg.Geolocation.Source {
	case "mqtt":
		if cfg.Geolocation.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker cannot be empty when geolocation source is mqtt")
		}
	case "replay":
		if cfg.Geolocation.Replay == "" {
			return fmt.Errorf("replay file cannot be empty when geolocation source is replay")
		}
	}

	if cfg.Store.Driver == "sqlite" && cfg.Store.SQLitePath == "" {
		return fmt.Errorf("sqlite path cannot be empty")
	}

	if cfg.Store.Driver == "redis" && cfg.Store.RedisURL == "" {
		return fmt.Errorf("store redis url cannot be empty")
	}

	if cfg.Events.Driver == "redis" && cfg.Events.RedisURL == "" {
		return fmt.Errorf("events redis url cannot be empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Log.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}

	validEncodings := []string{"json", "console"}
	if !contains(validEncodings, cfg.Log.Encoding) {
		return fmt.Errorf("invalid log encoding: %s", cfg.Log.Encoding)
	}

	return nil
}

// RefreshDuration returns the poll cadence as a duration
func (t *TrackerConfig) RefreshDuration() time.Duration {
	return time.Duration(t.RefreshInterval) * time.Second
}

// GetViewAddr returns the view server address in host:port format
func (v *ViewConfig) GetViewAddr() string {
	return fmt.Sprintf("%s:%d", v.Host, v.Port)
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}

func containsInt(slice []int, item int) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
