// Package config provides configuration for the causal diagram tools.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds tool configuration.
type Config struct {
	// DataDir is the directory holding the database.
	DataDir string `env:"CAUSAL_DATA" envDefault:"./.causal" validate:"required"`
	// CatalogPath is an optional catalog YAML file. Empty uses the built-in catalog.
	CatalogPath string `env:"CAUSAL_CATALOG"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"CAUSAL_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	// Debug forces debug logging.
	Debug bool `env:"CAUSAL_DEBUG" envDefault:"false"`
}

// FromEnv creates a Config from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FromArgs creates a Config from explicit values, with env fallbacks.
func FromArgs(dataDir, catalogPath string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Level parses LogLevel. Debug overrides it.
func (c *Config) Level() (slog.Level, error) {
	if c.Debug {
		return slog.LevelDebug, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// NewLogger builds a text logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := c.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
