// Package candlecache composes the coverage metadata store, the candle
// series store and the file lock guard into one write session per cache
// location.
//
// A session is a unit of work: acquire the lock, load both stores, let the
// caller partition and fetch, merge and persist, release the lock. Sessions
// on the same base path are totally ordered; a session always observes the
// fully committed result of the previous one.
//
//	cache, err := candlecache.Open(ctx, log, "/var/cache/candles-1h", nil)
//	if err != nil { ... }
//	defer cache.Close()
//
//	partition := cache.PartitionForFetch(pairIDs, start, end)
//	// ... fetch missing candles from the remote source ...
//	err = cache.Update(batches, pairIDs, start, end)
package candlecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradeflow/candlecache/pkg/coverage"
	"github.com/tradeflow/candlecache/pkg/flock"
	"github.com/tradeflow/candlecache/pkg/observability"
	"github.com/tradeflow/candlecache/pkg/series"
)

// File suffixes appended to a cache base path.
const (
	DataSuffix = ".data"
	MetaSuffix = ".meta"
	LockSuffix = ".lock"
)

// Cache is an open write session against one cache location. It is not
// safe for concurrent use; cross-process and cross-thread exclusion is the
// guard's job, not the session's.
type Cache struct {
	log      logrus.FieldLogger
	basePath string
	cfg      *Config

	guard *flock.Guard
	meta  *coverage.Metadata
	data  *series.Store

	open bool
}

// Open acquires the write lock for basePath and loads both cache files,
// blocking up to the configured lock timeout. A nil cfg uses defaults.
// On any load failure the lock is released before returning.
func Open(ctx context.Context, log logrus.FieldLogger, basePath string, cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	guard, err := flock.Acquire(ctx, log, basePath+LockSuffix, cfg.LockTimeout)
	if err != nil {
		if errors.Is(err, flock.ErrTimeout) {
			observability.SessionsTotal.WithLabelValues("lock_timeout").Inc()
		} else {
			observability.SessionsTotal.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("open cache %s: %w", basePath, err)
	}

	meta, err := coverage.Load(log, basePath+MetaSuffix)
	if err != nil {
		guard.Release()
		observability.SessionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	data, err := series.Load(log, basePath+DataSuffix)
	if err != nil {
		guard.Release()
		observability.SessionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	observability.SessionsTotal.WithLabelValues("opened").Inc()

	return &Cache{
		log:      log,
		basePath: basePath,
		cfg:      cfg,
		guard:    guard,
		meta:     meta,
		data:     data,
		open:     true,
	}, nil
}

// BasePath returns the cache location this session is bound to.
func (c *Cache) BasePath() string {
	return c.basePath
}

// Data returns the candle series store. Calling it on a closed session is
// a programming error and panics.
func (c *Cache) Data() *series.Store {
	c.mustBeOpen()
	return c.data
}

// Metadata returns the coverage metadata store. Calling it on a closed
// session is a programming error and panics.
func (c *Cache) Metadata() *coverage.Metadata {
	c.mustBeOpen()
	return c.meta
}

// PartitionForFetch classifies the requested pairs against cached coverage
// for the inclusive [startTime, endTime] window. See
// coverage.Metadata.PartitionForFetch for the precedence rules.
func (c *Cache) PartitionForFetch(ids []coverage.PairID, startTime, endTime time.Time) coverage.Partition {
	c.mustBeOpen()
	return c.meta.PartitionForFetch(ids, startTime, endTime)
}

// DeltaFetchStartTime returns the earliest safe start for a delta fetch
// under the configured lookback window, or nil when the cache was never
// persisted.
func (c *Cache) DeltaFetchStartTime() *time.Time {
	c.mustBeOpen()
	return c.meta.DeltaFetchStartTime(c.cfg.Lookback)
}

// Update merges fetched candle batches into the series store and widens
// coverage for the fetched pairs, persisting both files before returning.
// Empty batches leave the series table untouched but still record that the
// range was checked for the given pairs.
func (c *Cache) Update(batches [][]series.Candle, ids []coverage.PairID, startTime, endTime time.Time) error {
	c.mustBeOpen()

	if err := c.data.Update(batches); err != nil {
		return err
	}

	c.meta.Update(ids, startTime, endTime)

	return c.meta.Save()
}

// Close releases the write lock. Idempotent; always safe to defer.
func (c *Cache) Close() error {
	if !c.open {
		return nil
	}
	c.open = false

	return c.guard.Release()
}

func (c *Cache) mustBeOpen() {
	if !c.open {
		panic("candlecache: session is not open")
	}
}
