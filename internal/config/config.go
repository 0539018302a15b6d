package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs to run. Values come from the
// environment; the command line may override the common ones (see cmd/server).
type Config struct {
	ServerAddr        string   `env:"RDB_ADDR" envDefault:"localhost:8000"`
	DatabaseDSN       string   `env:"RDB_DATABASE_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"`
	SigningSecret     string   `env:"RDB_SIGNING_KEY"`
	AllowedOrigins    []string `env:"RDB_ALLOWED_ORIGINS" envSeparator:","`
	CountdownSeconds  int      `env:"RDB_COUNTDOWN_SECONDS" envDefault:"5"`
	LogLevel          string   `env:"RDB_LOG_LEVEL" envDefault:"info"`
	SessionTTLMinutes int      `env:"RDB_SESSION_TTL_MINUTES" envDefault:"1440"`

	// SigningKey is the decoded form of SigningSecret.
	SigningKey []byte `env:"-"`
}

func (c *Config) Countdown() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Validate checks required values and decodes the signing secret.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}
	if c.CountdownSeconds <= 0 {
		return fmt.Errorf("countdown seconds must be positive")
	}

	key, err := base64.StdEncoding.DecodeString(c.SigningSecret)
	if err != nil {
		return fmt.Errorf("decode signing secret: %w", err)
	}
	c.SigningKey = key

	return nil
}

// Parse reads the environment into a Config without validating it, so
// callers can layer overrides on top before calling Validate.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewConfig builds a Config from explicit values, typically command line
// flags. Empty values fall back to the environment defaults.
func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	cfg := Config{
		ServerAddr:        serverAddr,
		DatabaseDSN:       databaseDSN,
		SigningSecret:     base64Secret,
		AllowedOrigins:    allowedOrigins,
		CountdownSeconds:  5,
		LogLevel:          "info",
		SessionTTLMinutes: 1440,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
