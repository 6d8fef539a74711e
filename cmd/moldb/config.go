package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is moldb.yaml's shape: the handful of settings that matter
// before a database is opened. Anything else (log level, addresses)
// stays a CLI flag.
type Config struct {
	DataDir    string `yaml:"dataDir"`
	MaxMapSize string `yaml:"maxMapSize"` // e.g. "1g", "512m"; empty = unbounded
}

// DefaultConfig returns the configuration used when no --config file
// is given.
func DefaultConfig() Config {
	return Config{DataDir: "./moldb-data"}
}

// LoadConfig reads and parses a moldb.yaml file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// DatabasePath returns the bbolt file path within DataDir.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "moldb.db")
}

// MaxMapSizeBytes parses MaxMapSize, returning 0 (unbounded) if unset
// or malformed.
func (c Config) MaxMapSizeBytes() int64 {
	return parseByteSize(c.MaxMapSize)
}

func parseByteSize(s string) int64 {
	if s == "" {
		return 0
	}
	var n int64
	var unit string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err != nil {
		return 0
	}
	switch unit {
	case "g", "G", "gb", "GB":
		return n * 1024 * 1024 * 1024
	case "m", "M", "mb", "MB":
		return n * 1024 * 1024
	case "k", "K", "kb", "KB":
		return n * 1024
	default:
		return n
	}
}
