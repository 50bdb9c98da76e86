// Package config loads the service configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls log output and rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // logrus level name; defaults to info.
	File       string `yaml:"file"`        // Log file path; empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size"`    // Rotate after this many megabytes.
	MaxBackups int    `yaml:"max-backups"` // Rotated files to retain.
	MaxAgeDays int    `yaml:"max-age"`     // Days to retain rotated files.
}

// Config is the root service configuration.
type Config struct {
	Listen      string        `yaml:"listen"`       // HTTP listen address.
	AdminToken  string        `yaml:"admin-token"`  // Static bearer token for admin routes.
	RedisURL    string        `yaml:"redis-url"`    // Card/redemption store backend.
	DatabaseDSN string        `yaml:"database-dsn"` // Credential database DSN.
	Logging     LoggingConfig `yaml:"logging"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	cfg := &Config{}
	if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}
	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = ":8317"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 28
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("config: redis-url is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("config: database-dsn is required")
	}
	if strings.TrimSpace(c.AdminToken) == "" {
		return fmt.Errorf("config: admin-token is required")
	}
	return nil
}
