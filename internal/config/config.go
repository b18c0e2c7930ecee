// SPDX-License-Identifier: MPL-2.0

// Package config loads pacup's configuration from the XDG config directory
// and PACUP_* environment variables, with viper supplying precedence and
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, also the config directory name.
	AppName = "pacup"

	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"

	envPrefix = "PACUP"
)

var (
	// ErrInvalidConcurrency is returned for a non-positive aggregator
	// concurrency ceiling.
	ErrInvalidConcurrency = errors.New("repology.max_concurrent must be at least 1")

	// ErrInvalidTimeout is returned for a non-positive HTTP timeout.
	ErrInvalidTimeout = errors.New("http.timeout_seconds must be at least 1")
)

type (
	// Config is the resolved pacup configuration.
	Config struct {
		Repology RepologyConfig `mapstructure:"repology"`
		HTTP     HTTPConfig     `mapstructure:"http"`
		Download DownloadConfig `mapstructure:"download"`
		// GitHubToken authenticates GitHub release-note requests for
		// higher rate limits, usually set via PACUP_GITHUB_TOKEN.
		GitHubToken string   `mapstructure:"github_token"`
		UI          UIConfig `mapstructure:"ui"`
	}

	// RepologyConfig controls the version aggregator client.
	RepologyConfig struct {
		BaseURL string `mapstructure:"base_url"`
		// MaxConcurrent caps simultaneous aggregator queries process-wide.
		MaxConcurrent int `mapstructure:"max_concurrent"`
	}

	// HTTPConfig controls all outbound HTTP requests.
	HTTPConfig struct {
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
	}

	// DownloadConfig controls where release artifacts are staged.
	DownloadConfig struct {
		Dir string `mapstructure:"dir"`
	}

	// UIConfig holds display preferences.
	UIConfig struct {
		Verbose bool `mapstructure:"verbose"`
	}

	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific file when set.
		ConfigFilePath string
		// ConfigDirPath overrides the platform config directory, primarily
		// for tests.
		ConfigDirPath string
	}
)

// DefaultConfig returns the built-in defaults used when no config file or
// environment override exists.
func DefaultConfig() *Config {
	return &Config{
		Repology: RepologyConfig{
			BaseURL:       "https://repology.org",
			MaxConcurrent: 11,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 30,
		},
		Download: DownloadConfig{
			Dir: filepath.Join(os.TempDir(), AppName),
		},
	}
}

// ConfigDir returns the pacup configuration directory following
// $XDG_CONFIG_HOME, defaulting to ~/.config.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// Load resolves the configuration: defaults first, then the config file
// (explicit path or the XDG location), then PACUP_* environment variables.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("repology.base_url", defaults.Repology.BaseURL)
	v.SetDefault("repology.max_concurrent", defaults.Repology.MaxConcurrent)
	v.SetDefault("http.timeout_seconds", defaults.HTTP.TimeoutSeconds)
	v.SetDefault("download.dir", defaults.Download.Dir)
	v.SetDefault("github_token", "")
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", opts.ConfigFilePath, err)
		}
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, err
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(cfgDir)

		// A missing default config file is fine; every key has a default.
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configDirWithOverride resolves the configuration directory, honoring an
// explicit override before the platform default.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// Validate rejects configurations that would break the update pipeline.
func (c *Config) Validate() error {
	if c.Repology.MaxConcurrent < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.Repology.MaxConcurrent)
	}
	if c.HTTP.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidTimeout, c.HTTP.TimeoutSeconds)
	}
	return nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}
