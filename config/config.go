// Package config reads SDK settings from the environment, with an optional
// YAML file for the CLI.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	BaseURL         string        `yaml:"base_url" env:"TROCA_BASE_URL" env-default:"http://localhost:5887/api"`
	Timeout         time.Duration `yaml:"timeout" env:"TROCA_TIMEOUT" env-default:"10s"`
	CacheMaxEntries int           `yaml:"cache_max_entries" env:"TROCA_CACHE_MAX_ENTRIES" env-default:"0"`
	CachePath       string        `yaml:"cache_path" env:"TROCA_CACHE_PATH"`
	LogLevel        string        `yaml:"log_level" env:"TROCA_LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config from environment: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a YAML config file; environment variables still win.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	return cfg, nil
}
