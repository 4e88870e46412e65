package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Window   WindowConfig
	Engine   EngineConfig
	Prefetch PrefetchConfig
	TTL      TTLConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	RateLimit int // requests per second, global
}

type UpstreamConfig struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

type WindowConfig struct {
	HistoryDays  int
	ForecastDays int
}

type EngineConfig struct {
	FPS              int
	MinPax           int
	SpreadWindowDays int
	PrefetchRadius   int
}

type PrefetchConfig struct {
	Workers    int
	BufferSize int
}

type TTLConfig struct {
	Locations  time.Duration
	Arcs       time.Duration
	Detections time.Duration
	Waves      time.Duration
	Variants   time.Duration
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			RateLimit: getEnvInt("RATE_LIMIT_RPS", 20),
		},
		Upstream: UpstreamConfig{
			BaseURL:  getEnv("UPSTREAM_URL", "http://localhost:9000"),
			Timeout:  getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
			PageSize: getEnvInt("UPSTREAM_PAGE_SIZE", 500),
		},
		Window: WindowConfig{
			HistoryDays:  getEnvInt("HISTORY_DAYS", 30),
			ForecastDays: getEnvInt("FORECAST_DAYS", 7),
		},
		Engine: EngineConfig{
			FPS:              getEnvInt("ANIMATION_FPS", 30),
			MinPax:           getEnvInt("MIN_PASSENGER_THRESHOLD", 500),
			SpreadWindowDays: getEnvInt("SPREAD_WINDOW_DAYS", 60),
			PrefetchRadius:   getEnvInt("PREFETCH_RADIUS_DAYS", 3),
		},
		Prefetch: PrefetchConfig{
			Workers:    getEnvInt("PREFETCH_WORKERS", 2),
			BufferSize: getEnvInt("PREFETCH_BUFFER_SIZE", 20),
		},
		TTL: TTLConfig{
			Locations:  getEnvDuration("LOCATIONS_TTL", 5*time.Minute),
			Arcs:       getEnvDuration("ARCS_TTL", 30*time.Minute),
			Detections: getEnvDuration("DETECTIONS_TTL", 15*time.Minute),
			Waves:      getEnvDuration("WAVES_TTL", 15*time.Minute),
			Variants:   getEnvDuration("VARIANTS_TTL", 15*time.Minute),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/outbreak-globe.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Window.HistoryDays < 1 {
		return fmt.Errorf("history window must be at least 1 day")
	}
	if c.Window.ForecastDays < 0 {
		return fmt.Errorf("forecast window must be non-negative")
	}
	if c.Engine.FPS < 1 || c.Engine.FPS > 120 {
		return fmt.Errorf("animation fps must be in [1,120], got %d", c.Engine.FPS)
	}
	if c.TTL.Locations < time.Minute || c.TTL.Arcs < time.Minute {
		return fmt.Errorf("staleness windows must be at least 1 minute")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
