// Package config loads the service configuration from a yaml file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration
type Config struct {
	App       App       `yaml:"app"`
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Cache     Cache     `yaml:"cache"`
	Auth      Auth      `yaml:"auth"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Tracking  Tracking  `yaml:"tracking"`
}

// App identifies the service
type App struct {
	Name string `yaml:"name"`
	Mode string `yaml:"mode"`
	// BaseURL is the public origin used when building tracking URLs
	BaseURL string `yaml:"base_url"`
}

// Server holds HTTP server settings
type Server struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

// Database selects and configures the storage backend.
// Driver is "sqlite" (Path) or "mysql" (Host/Port/User/Password/Name).
type Database struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Cache configures the optional redis backend. An empty host disables it.
type Cache struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Auth configures JWT issuing
type Auth struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	ExpirationHours int    `yaml:"expiration_hours"`
}

// RateLimit configures per-link per-IP hit limiting for links that enable it
type RateLimit struct {
	Requests      int64 `yaml:"requests"`
	WindowSeconds int   `yaml:"window_seconds"`
}

// Window returns the configured window as a duration, defaulting to a minute
func (r RateLimit) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

// Tracking configures the decision pipeline
type Tracking struct {
	// ExtraBotSignatures extends the built-in bot signature list
	ExtraBotSignatures []string `yaml:"extra_bot_signatures"`
	// GeoCacheTTLSeconds bounds geo lookups per IP; 0 disables caching
	GeoCacheTTLSeconds int `yaml:"geo_cache_ttl_seconds"`
	// EventRetentionDays prunes events older than this; 0 keeps forever
	EventRetentionDays int `yaml:"event_retention_days"`
}

// GeoCacheTTL returns the geo cache TTL as a duration
func (t Tracking) GeoCacheTTL() time.Duration {
	return time.Duration(t.GeoCacheTTLSeconds) * time.Second
}

// Load reads and parses the config file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App:    App{Name: "clickgate", Mode: "development", BaseURL: "http://localhost:8080"},
		Server: Server{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Database: Database{
			Driver: "sqlite",
			Path:   "clickgate.db",
		},
		Auth: Auth{
			Issuer:          "clickgate",
			ExpirationHours: 24,
		},
		RateLimit: RateLimit{Requests: 60, WindowSeconds: 60},
		Tracking:  Tracking{GeoCacheTTLSeconds: 300},
	}
}
