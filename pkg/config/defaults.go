package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ccollicutt/acclog/pkg/parser"
)

// Default values for configuration.
const (
	DefaultWebhookTimeout  = 10 * time.Second
	DefaultTimestampLayout = parser.DefaultTimestampLayout
)

// Environment variable names.
const (
	EnvTimestampLayout = "ACCLOG_TIMESTAMP_LAYOUT"
	EnvWorkers         = "ACCLOG_WORKERS"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogSources:      []string{},
		TimestampLayout: DefaultTimestampLayout,
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() error {
	if layout := os.Getenv(EnvTimestampLayout); layout != "" {
		c.TimestampLayout = layout
	}
	if workers := os.Getenv(EnvWorkers); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}
