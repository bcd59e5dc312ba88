// Package config loads runtime settings from WEAVER_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the runtime.
type Config struct {
	DBPath        string        `env:"WEAVER_DB_PATH"`
	ViewTTL       time.Duration `env:"WEAVER_VIEW_TTL"        envDefault:"30s"`
	SpiralRadius  int           `env:"WEAVER_SPIRAL_RADIUS"   envDefault:"20"`
	Seed          int64         `env:"WEAVER_SEED"`
	RegistrySize  int           `env:"WEAVER_REGISTRY_SIZE"   envDefault:"256"`
	SessionTTL    time.Duration `env:"WEAVER_SESSION_TTL"     envDefault:"24h"`
	LogLevel      string        `env:"WEAVER_LOG_LEVEL"       envDefault:"info"`
	TraceEndpoint string        `env:"WEAVER_TRACE_ENDPOINT"`
	TraceInsecure bool          `env:"WEAVER_TRACE_INSECURE"`
	MetricsAddr   string        `env:"WEAVER_METRICS_ADDR"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot work with.
func (c Config) Validate() error {
	var problems []string
	if c.ViewTTL < 0 {
		problems = append(problems, "WEAVER_VIEW_TTL must not be negative")
	}
	if c.SpiralRadius < 2 {
		problems = append(problems, "WEAVER_SPIRAL_RADIUS must be at least 2")
	}
	if c.RegistrySize < 1 {
		problems = append(problems, "WEAVER_REGISTRY_SIZE must be positive")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "WEAVER_SESSION_TTL must be positive")
	}
	if _, err := c.Level(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("WEAVER_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
