package candlecache

import (
	"errors"
	"time"

	"github.com/creasty/defaults"
)

var (
	// ErrInvalidLockTimeout is returned when the lock timeout is not positive
	ErrInvalidLockTimeout = errors.New("lock timeout must be positive")
	// ErrInvalidLookback is returned when the lookback window is not positive
	ErrInvalidLookback = errors.New("lookback window must be positive")
)

// Config represents the cache session configuration
type Config struct {
	// LockTimeout bounds how long Open waits for another writer to finish
	LockTimeout time.Duration `yaml:"lockTimeout" default:"2m"`

	// Lookback is how far behind the last cache write a delta fetch
	// reaches, re-covering candles that were not final when first observed
	Lookback time.Duration `yaml:"lookback" default:"48h"`
}

// DefaultConfig returns a config populated with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LockTimeout <= 0 {
		return ErrInvalidLockTimeout
	}

	if c.Lookback <= 0 {
		return ErrInvalidLookback
	}

	return nil
}
