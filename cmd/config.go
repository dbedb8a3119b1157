package cmd

import (
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/tradeflow/candlecache/pkg/candlecache"
)

// Inspection commands only peek at a cache location; waiting out a slow
// writer's full lock timeout would make them hang instead of failing fast.
const inspectLockTimeout = 10 * time.Second

// loadConfig returns the cache configuration, overlaying the optional YAML
// config file on top of defaults.
func loadConfig(file string) (*candlecache.Config, error) {
	config := &candlecache.Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	if file == "" {
		return config, nil
	}

	yamlFile, err := os.ReadFile(file) //nolint:gosec // User-provided config file path
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	return config, nil
}

// inspectConfig loads the configuration for read-only inspection commands,
// capping the lock wait so they fail fast when a writer holds the cache.
func inspectConfig(file string) (*candlecache.Config, error) {
	config, err := loadConfig(file)
	if err != nil {
		return nil, err
	}

	capLockTimeout(config)

	return config, nil
}

func capLockTimeout(config *candlecache.Config) {
	if config.LockTimeout > inspectLockTimeout {
		config.LockTimeout = inspectLockTimeout
	}
}
