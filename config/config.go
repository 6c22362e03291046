// Package config loads client configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// ErrInvalid is returned when a configuration file is readable but does
// not describe a usable client.
var ErrInvalid = errors.New("invalid configuration")

// Config describes one sync client: the account it serves, the key
// derivation salt, and where local state lives.
type Config struct {
	// Account is the account identifier, normally an email address.
	Account string `yaml:"account"`
	// Salt feeds key derivation together with the account password.
	Salt string `yaml:"salt"`
	// Server is the sync server base URL.
	Server string `yaml:"server"`
	// DataDir holds the local sync state database. Defaults to
	// ".quillsync" under the working directory.
	DataDir string `yaml:"dataDir"`
	// LogLevel is a logrus level name. Defaults to "info".
	LogLevel string `yaml:"logLevel"`
	// CalendarWindowDays bounds how far around now calendar events are
	// considered for sync. Zero means unbounded.
	CalendarWindowDays int `yaml:"calendarWindowDays"`
}

// Default returns a configuration with every optional field at its
// default. Account, Salt, and Server must still be filled in.
func Default() Config {
	return Config{
		DataDir:  ".quillsync",
		LogLevel: "info",
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = ".quillsync"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that the configuration names an account and a salt and
// that the log level parses.
func (c *Config) Validate() error {
	if c.Account == "" {
		return fmt.Errorf("%w: account is required", ErrInvalid)
	}
	if c.Salt == "" {
		return fmt.Errorf("%w: salt is required", ErrInvalid)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	if c.CalendarWindowDays < 0 {
		return fmt.Errorf("%w: calendarWindowDays must not be negative", ErrInvalid)
	}
	return nil
}

// ParsedLogLevel returns the configured logrus level. Call Validate
// first; an unparseable level falls back to info here.
func (c *Config) ParsedLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// StatePath returns the directory for the local state database.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}
