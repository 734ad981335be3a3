// Package config loads the catalog service's YAML configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	"github.com/cuemby/blockcat/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config is the top-level catalog service configuration.
type Config struct {
	DatabaseEngine             string `yaml:"databaseEngine"`
	GracePeriodSeconds         int    `yaml:"gracePeriodSeconds"`
	BlockCommitIntervalSeconds int    `yaml:"blockCommitIntervalSeconds"`
	LockTimeoutSeconds         int    `yaml:"lockTimeoutSeconds"`
	LogLevel                   string `yaml:"logLevel"`
	LogJSON                    bool   `yaml:"logJSON"`
}

// Defaults mirror the values named in the catalog operations, GC planner,
// and concurrency model designs.
const (
	DefaultGracePeriodSeconds         = 3600
	DefaultBlockCommitIntervalSeconds = 20
	DefaultLockTimeoutSeconds         = 60
	DefaultLogLevel                   = "info"
)

// Load reads and parses the YAML file at path, applying defaults for any
// zero-valued field.
func Load(path string) (*Config, error) {
	const op = catalogerr.Op("config.Load")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("read config file: %w", err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, catalogerr.E(op, catalogerr.InputData, fmt.Errorf("parse config file: %w", err))
	}

	cfg.applyDefaults()

	if cfg.DatabaseEngine == "" {
		return nil, catalogerr.E(op, catalogerr.InputData, "databaseEngine is required")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.GracePeriodSeconds == 0 {
		c.GracePeriodSeconds = DefaultGracePeriodSeconds
	}
	if c.BlockCommitIntervalSeconds == 0 {
		c.BlockCommitIntervalSeconds = DefaultBlockCommitIntervalSeconds
	}
	if c.LockTimeoutSeconds == 0 {
		c.LockTimeoutSeconds = DefaultLockTimeoutSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// LogConfig returns the log.Config this configuration describes.
func (c *Config) LogConfig() log.Config {
	return log.Config{
		Level:      log.Level(c.LogLevel),
		JSONOutput: c.LogJSON,
	}
}
