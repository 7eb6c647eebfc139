// Package config holds the settings of interpretations and edits.
//
// Settings come from three layers, later ones overriding earlier ones: the
// defaults from Default, an optional YAML file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the configuration of the engine.
type Config struct {
	// MaxSymbolDepth bounds how many times a noun may be invoked recursively
	// along one chain of values.
	MaxSymbolDepth int `yaml:"max_symbol_depth"`
	// BatchSize bounds how many pending calls a reducing operation combines
	// into one result.
	BatchSize int `yaml:"batch_size"`
	// Seed drives the choices of random steps.
	Seed int64 `yaml:"seed"`
	// Roots are the nouns that are kept when an edit removes unreachable
	// nouns. If empty, the first noun of the grammar is the only root.
	Roots []string `yaml:"roots"`
	// Tracing turns on span export in the binary.
	Tracing bool `yaml:"tracing"`
}

// Environment variables overriding the configuration.
const (
	EnvMaxSymbolDepth = "CGV_MAX_SYMBOL_DEPTH"
	EnvBatchSize      = "CGV_BATCH_SIZE"
	EnvSeed           = "CGV_SEED"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		MaxSymbolDepth: 50,
		BatchSize:      100,
	}
}

// Load returns the default configuration overridden by the YAML file at path,
// if path is not empty, and then by environment variables. The result is
// validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := loadFromEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvMaxSymbolDepth); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxSymbolDepth, err)
		}
		cfg.MaxSymbolDepth = n
	}
	if v, ok := os.LookupEnv(EnvBatchSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBatchSize, err)
		}
		cfg.BatchSize = n
	}
	if v, ok := os.LookupEnv(EnvSeed); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		cfg.Seed = n
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var problems []error
	if c.MaxSymbolDepth < 1 {
		problems = append(problems, fmt.Errorf("max_symbol_depth must be positive, got %d", c.MaxSymbolDepth))
	}
	if c.BatchSize < 1 {
		problems = append(problems, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	return errors.Join(problems...)
}
