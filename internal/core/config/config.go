// Package config handles configuration loading and validation for critic.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/critic-sh/critic/internal/core/detect"
)

// Config holds the application configuration.
type Config struct {
	// Addr is the listen address for the web server.
	Addr string `yaml:"addr"`
	// FreshnessWindow bounds how long a remote client counts as connected
	// after its last heartbeat.
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	// Agents overrides the detected coding-agent list. Order is both the
	// detection list and the tie-break order.
	Agents []string `yaml:"agents"`
	// AI overrides the provider fallback chain.
	AI AIConfig `yaml:"ai"`

	DataDir string `yaml:"-"` // set by caller, not from config file
}

// AIConfig holds the consolidation pipeline configuration.
type AIConfig struct {
	// Chain is tried in order, cheapest first. Empty means the built-in
	// default chain.
	Chain []ChainEntry `yaml:"chain"`
}

// ChainEntry is one provider/model pair in the fallback chain.
type ChainEntry struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:3737",
		FreshnessWindow: 5 * time.Minute,
		Agents:          detect.DefaultAgents,
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the
// provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Addr == "" {
		c.Addr = defaults.Addr
	}
	if c.FreshnessWindow == 0 {
		c.FreshnessWindow = defaults.FreshnessWindow
	}
	if len(c.Agents) == 0 {
		c.Agents = defaults.Agents
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.FreshnessWindow < 0 {
		return fmt.Errorf("freshness_window cannot be negative")
	}

	for i, entry := range c.AI.Chain {
		if entry.Provider == "" || entry.Model == "" {
			return fmt.Errorf("ai.chain[%d] must have both provider and model", i)
		}
	}

	return nil
}

// DatabaseDir returns the directory holding the sqlite database.
func (c *Config) DatabaseDir() string {
	return filepath.Join(c.DataDir, "db")
}
