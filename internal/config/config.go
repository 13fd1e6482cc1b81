package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v6"
)

// Config carries all runtime settings, parsed from environment
// variables.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"gochat"`
	Env     string `env:"APP_ENV" envDefault:"development"`
	Host    string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port    int    `env:"HTTP_PORT" envDefault:"8000"`

	DatabasePath string `env:"SQLITE_PATH" envDefault:"gochat.db"`

	// EncryptionKey is the process-wide secret the message cipher derives
	// its AES key from. Required.
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// HistoryLimit bounds how many messages a history batch may contain.
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"50"`

	// MaxPublicMessages caps stored public history; oldest rows are
	// pruned after each append. 0 disables pruning.
	MaxPublicMessages int `env:"MAX_PUBLIC_MESSAGES" envDefault:"0"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.EncryptionKey == "" {
		return nil, errors.New("ENCRYPTION_KEY is required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}
	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
