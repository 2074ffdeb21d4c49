// Package config loads the central recorder configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/feed-recorder/pkg/filesystem"
)

// Config holds the central application configuration
type Config struct {
	// Feed sources
	Feeds struct {
		URLs          []string `mapstructure:"urls"`          // Inline feed URL list
		Subscriptions string   `mapstructure:"subscriptions"` // Optional subscriptions file path or URL
	} `mapstructure:"feeds"`

	// Output file settings
	Output struct {
		Path   string `mapstructure:"path"`   // Output file path (.json or .csv)
		Format string `mapstructure:"format"` // Explicit format override: "json" or "csv"
	} `mapstructure:"output"`

	// Fetch behavior
	Fetch struct {
		Timeout     time.Duration `mapstructure:"timeout"`      // Per-request timeout
		MaxRetries  int           `mapstructure:"max_retries"`  // HTTP retry attempts
		Delay       time.Duration `mapstructure:"delay"`        // Politeness delay between feed fetches
		Concurrency int           `mapstructure:"concurrency"`  // Parallel feed fetches
		UserAgent   string        `mapstructure:"user_agent"`   // User-Agent header
		MaxPerFeed  int           `mapstructure:"max_per_feed"` // Cap on entries per feed, 0 = unlimited
	} `mapstructure:"fetch"`

	// Seen-entry history index
	History struct {
		Path          string `mapstructure:"path"`           // History database path
		RetentionDays int    `mapstructure:"retention_days"` // Prune window for the prune command
		Disable       bool   `mapstructure:"disable"`        // Dedup against the output file only
	} `mapstructure:"history"`

	// Logging
	Log struct {
		File       string `mapstructure:"file"`        // Optional rotated log file
		MaxSizeMB  int    `mapstructure:"max_size_mb"` // Rotation threshold
		MaxBackups int    `mapstructure:"max_backups"` // Rotated files kept
	} `mapstructure:"log"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	// If path is relative, try current directory first, then executable directory
	if !filepath.IsAbs(path) {
		// First try the current working directory
		if _, err := os.Stat(path); err != nil {
			// If not found in current directory, try executable directory
			if execPath, err := filesystem.GetDefaultPath(path); err == nil {
				if _, err := os.Stat(execPath); err == nil {
					path = execPath
				}
			}
			// If both fail, use original path and fall through to defaults
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set default values
	v.SetDefault("output.path", "feed_data.json")
	v.SetDefault("output.format", "")

	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.delay", "1s")
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("fetch.user_agent", "feed-recorder/1.0")
	v.SetDefault("fetch.max_per_feed", 0)

	v.SetDefault("history.path", "")
	v.SetDefault("history.retention_days", 90)
	v.SetDefault("history.disable", false)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine - we'll use defaults
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// OutputPath returns the output file path with ~ expanded.
func (c *Config) OutputPath() (string, error) {
	return filesystem.ExpandHome(c.Output.Path)
}

// HistoryPath returns the history database path with ~ expanded, defaulting
// to history.db in the executable directory.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path == "" {
		return filesystem.GetDefaultPath("history.db")
	}
	return filesystem.ExpandHome(c.History.Path)
}

// SubscriptionsSource returns the subscriptions file path with ~ expanded.
// Remote URLs pass through untouched.
func (c *Config) SubscriptionsSource() (string, error) {
	source := c.Feeds.Subscriptions
	if source == "" {
		return "", nil
	}
	return filesystem.ExpandHome(source)
}
