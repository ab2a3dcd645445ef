package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Backend the sync core talks to. The websocket URL is derived from the
	// base URL unless set explicitly.
	BackendBaseURL string `mapstructure:"BACKEND_BASE_URL"`
	BackendWSURL   string `mapstructure:"BACKEND_WS_URL"`

	// Request coordinator.
	CacheWindowMS     int `mapstructure:"CACHE_WINDOW_MS"`
	MaxRequestsPerMin int `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Realtime channel.
	HeartbeatIntervalSec int `mapstructure:"HEARTBEAT_INTERVAL_SEC"`
	ReconnectBaseDelayMS int `mapstructure:"RECONNECT_BASE_DELAY_MS"`
	MaxReconnectAttempts int `mapstructure:"MAX_RECONNECT_ATTEMPTS"`

	// Normalizer entry-point debounce.
	DebounceDelayMS int `mapstructure:"DEBOUNCE_DELAY_MS"`

	// Local itinerary cache blob.
	CacheDir string `mapstructure:"CACHE_DIR"`

	// Map provider key served to clients from /map-key, never embedded in
	// client code.
	MapProviderKey string `mapstructure:"MAP_PROVIDER_KEY"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BACKEND_BASE_URL", "http://localhost:8080")
	viper.SetDefault("BACKEND_WS_URL", "")
	viper.SetDefault("CACHE_WINDOW_MS", 1000)
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("HEARTBEAT_INTERVAL_SEC", 30)
	viper.SetDefault("RECONNECT_BASE_DELAY_MS", 1000)
	viper.SetDefault("MAX_RECONNECT_ATTEMPTS", 5)
	viper.SetDefault("DEBOUNCE_DELAY_MS", 200)
	viper.SetDefault("CACHE_DIR", ".tripsync")
	viper.SetDefault("MAP_PROVIDER_KEY", "")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// CacheWindow returns the request-coordinator cache window as a duration.
func (c Config) CacheWindow() time.Duration {
	return time.Duration(c.CacheWindowMS) * time.Millisecond
}

// DebounceDelay returns the normalizer debounce delay as a duration.
func (c Config) DebounceDelay() time.Duration {
	return time.Duration(c.DebounceDelayMS) * time.Millisecond
}

// HeartbeatInterval returns the realtime heartbeat period as a duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

// ReconnectBaseDelay returns the first reconnect backoff delay as a duration.
func (c Config) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.ReconnectBaseDelayMS) * time.Millisecond
}
