package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Game    GameConfig
	Store   StoreConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Env  string `env:"ENV" envDefault:"development"` // "development" or "production"

	// Per connection action limit
	RateLimitPerSec float64 `env:"RATE_LIMIT_PER_SEC" envDefault:"10"`
	RateLimitBurst  int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// GameConfig holds game-related configuration
type GameConfig struct {
	HandSize         int           `env:"HAND_SIZE" envDefault:"7"`
	MaxMembers       int           `env:"MAX_MEMBERS" envDefault:"20"`
	StaleRoomTimeout time.Duration `env:"STALE_ROOM_TIMEOUT" envDefault:"2h"`
	CardsCSV         string        `env:"CARDS_CSV"` // Empty uses the embedded deck
}

// StoreConfig selects and configures the room store
type StoreConfig struct {
	Driver      string        `env:"STORE" envDefault:"memory"` // "memory" or "postgres"
	PostgresURL string        `env:"POSTGRES_URL"`
	Timeout     time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load reads an optional .env file, then the environment
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the environment cannot express as types
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required with STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE %q", c.Store.Driver)
	}
	if c.Game.HandSize < 1 {
		return fmt.Errorf("HAND_SIZE must be positive, got %d", c.Game.HandSize)
	}
	if c.Game.MaxMembers < 2 {
		return fmt.Errorf("MAX_MEMBERS must be at least 2, got %d", c.Game.MaxMembers)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}
