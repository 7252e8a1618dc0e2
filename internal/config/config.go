package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/kiwari-pos/terminal/internal/recovery"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port         string `env:"PORT" envDefault:"8081"`
	BackendURL   string `env:"BACKEND_URL" envDefault:"http://localhost:8080"`
	BackendWSURL string `env:"BACKEND_WS_URL"`
	JWTSecret    string `env:"JWT_SECRET" envDefault:"dev-secret-change-in-production"`

	// TerminalToken authenticates calls made without an operator, such as
	// the startup recovery check.
	TerminalToken string `env:"TERMINAL_TOKEN"`

	MarkerDBPath       string `env:"MARKER_DB_PATH" envDefault:"data/terminal.db"`
	ArchiveDatabaseURL string `env:"ARCHIVE_DATABASE_URL"`

	RecoveryMaxAttempts int           `env:"RECOVERY_MAX_ATTEMPTS" envDefault:"10"`
	RecoveryInterval    time.Duration `env:"RECOVERY_INTERVAL" envDefault:"1s"`

	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BackendWSURL == "" {
		cfg.BackendWSURL = wsURLFor(cfg.BackendURL)
	}
	if cfg.RecoveryMaxAttempts < 1 {
		return nil, fmt.Errorf("RECOVERY_MAX_ATTEMPTS must be >= 1, got %d", cfg.RecoveryMaxAttempts)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return &cfg, nil
}

// Recovery returns the recovery monitor polling bounds.
func (c *Config) Recovery() recovery.Config {
	return recovery.Config{MaxAttempts: c.RecoveryMaxAttempts, Interval: c.RecoveryInterval}
}

// Logger builds the root logger at the configured level.
func (c *Config) Logger() *log.Logger {
	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	if lvl, err := log.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

// wsURLFor derives the push stream base from the HTTP base URL.
func wsURLFor(httpURL string) string {
	if rest, ok := strings.CutPrefix(httpURL, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(httpURL, "http://"); ok {
		return "ws://" + rest
	}
	return httpURL
}
