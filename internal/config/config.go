package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Guard marker store backends.
const (
	GuardStoreMemory   = "memory"
	GuardStoreRedis    = "redis"
	GuardStoreSQLite   = "sqlite"
	GuardStorePostgres = "postgres"
)

// Config holds all configuration for the console.
type Config struct {
	Port string `env:"PORT" envDefault:"8090"`
	Env  string `env:"ENV" envDefault:"development"`

	// Remote training service
	APIBaseURL     string        `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
	StreamURL      string        `env:"STREAM_URL"`
	APIToken       string        `env:"API_TOKEN"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// Guard marker storage
	GuardStore  string        `env:"GUARD_STORE" envDefault:"memory"`
	GuardTTL    time.Duration `env:"GUARD_TTL" envDefault:"12h"`
	RedisURL    string        `env:"REDIS_URL"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"./data/guard.db"`
	DatabaseURL string        `env:"DATABASE_URL"`

	DedupeMessages bool  `env:"DEDUPE_MESSAGES" envDefault:"false"`
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.StreamURL == "" {
		derived, err := deriveStreamURL(cfg.APIBaseURL)
		if err != nil {
			return nil, err
		}
		cfg.StreamURL = derived
	}
	cfg.StreamURL = strings.TrimRight(cfg.StreamURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.GuardStore {
	case GuardStoreMemory:
	case GuardStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when GUARD_STORE=redis")
		}
	case GuardStoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when GUARD_STORE=sqlite")
		}
	case GuardStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when GUARD_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown GUARD_STORE %q", c.GuardStore)
	}

	// In production markers of still-open sessions must survive a console restart
	if c.Env == "production" && c.GuardStore == GuardStoreMemory {
		return fmt.Errorf("GUARD_STORE=memory is not allowed in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// deriveStreamURL maps http(s) to ws(s) on the same host.
func deriveStreamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse API_BASE_URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("API_BASE_URL must be http or https, got %q", u.Scheme)
	}
	return u.String(), nil
}
