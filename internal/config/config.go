// Package config loads the optional TOML configuration file from the XDG
// config directory. Everything in it is a default that command-line flags
// override.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/robwhited/intact/internal/digest"
)

// Config represents the optional intact configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Tuning   TuningConfig   `toml:"tuning"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	Algorithm     *string `toml:"algorithm"`
	Workers       *int    `toml:"workers"`
	PreserveTimes *bool   `toml:"preserve_times"`
	FailFast      *bool   `toml:"fail_fast"`
}

// TuningConfig overrides the buffer tier boundaries, in bytes.
type TuningConfig struct {
	SmallThreshold *int64 `toml:"small_threshold"`
	LargeThreshold *int64 `toml:"large_threshold"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "intact", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Defaults.Algorithm != nil {
		if _, err := digest.Parse(*c.Defaults.Algorithm); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Defaults.Workers != nil && *c.Defaults.Workers < 0 {
		return fmt.Errorf("config: workers must be non-negative")
	}
	small, large := c.Tuning.SmallThreshold, c.Tuning.LargeThreshold
	if (small == nil) != (large == nil) {
		return fmt.Errorf("config: small_threshold and large_threshold must be set together")
	}
	if small != nil && (*small <= 0 || *large <= *small) {
		return fmt.Errorf("config: thresholds must be positive and ordered")
	}
	return nil
}
