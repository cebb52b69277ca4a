package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v2"
)

// 1.19.4, the newest release the bundled block table targets.
const defaultDataVersion = 3337

// Config carries the conversion knobs that rarely change between runs.
// Command line flags override whatever the file says.
type Config struct {
	Workers             int    `yaml:"workers"`
	DataVersion         int    `yaml:"data_version"`
	FillCorruptedChunks bool   `yaml:"fill_corrupted_chunks"`
	LogLevel            string `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Workers:     runtime.NumCPU(),
		DataVersion: defaultDataVersion,
		LogLevel:    "info",
	}
}

// LoadConfig reads path when it exists and falls back to the defaults when
// it does not. A config file that exists but cannot be read or parsed is
// an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.DataVersion <= 0 {
		cfg.DataVersion = defaultDataVersion
	}
	return cfg, nil
}
