package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file and unmarshals it into the specified type.
// T must be a struct type that can be unmarshaled from YAML.
func LoadConfig[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// LoadClientConfig reads a client YAML configuration file, applies defaults
// and overrides the server address when override is non-empty.
func LoadClientConfig(path, override string) (*Client, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	cfg, err := LoadConfig[Client](path)
	if err != nil {
		return nil, err
	}
	if override != "" {
		cfg.Server = override
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("client configuration validation failed: %w", err)
	}

	logger.Info().Str("server", cfg.Server).Msg("loaded client configuration")
	return cfg, nil
}

// LoadBenchConfig reads a load test YAML configuration file the same way.
func LoadBenchConfig(path, override string) (*Bench, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	cfg, err := LoadConfig[Bench](path)
	if err != nil {
		return nil, err
	}
	if override != "" {
		cfg.Client.Server = override
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bench configuration validation failed: %w", err)
	}

	logger.Info().
		Str("server", cfg.Client.Server).
		Int("users", cfg.Users).
		Dur("duration", cfg.Duration).
		Msg("loaded bench configuration")
	return cfg, nil
}

// LoadServerConfig reads a fixture server YAML configuration file.
func LoadServerConfig(path string) (*Server, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	cfg, err := LoadConfig[Server](path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("server configuration validation failed: %w", err)
	}

	logger.Info().Str("listen", cfg.Listen).Int("keywords", len(cfg.Results)).Msg("loaded server configuration")
	return cfg, nil
}
