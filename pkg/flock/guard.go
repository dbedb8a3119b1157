// Package flock provides the cross-process mutual exclusion guard for a
// cache location, built on an OS advisory file lock.
package flock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradeflow/candlecache/pkg/observability"
)

var (
	// ErrTimeout is returned when the lock could not be acquired within the
	// caller's timeout. The caller owns retry policy.
	ErrTimeout = errors.New("timed out waiting for cache lock")

	errWouldBlock = errors.New("lock held by another process")
)

// flock(2) has no timed wait, so acquisition retries a non-blocking
// attempt on this interval until the deadline.
const retryInterval = 50 * time.Millisecond

// Guard holds an exclusive advisory lock on a sentinel file. Only one
// process or thread may hold the guard for a given path at a time.
type Guard struct {
	log      logrus.FieldLogger
	f        *os.File
	path     string
	released bool
}

// Acquire blocks up to timeout waiting for the exclusive lock on path,
// creating the sentinel file and any parent directories as needed. It
// returns ErrTimeout when the deadline expires and the context error when
// ctx is cancelled first.
func Acquire(ctx context.Context, log logrus.FieldLogger, path string, timeout time.Duration) (*Guard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // Caller-provided cache path
	if err != nil {
		return nil, err
	}

	started := time.Now()
	deadline := started.Add(timeout)
	waited := false

	for {
		err := tryLockExclusive(f)
		if err == nil {
			break
		}
		if !errors.Is(err, errWouldBlock) {
			f.Close()
			return nil, err
		}

		if !waited {
			log.WithFields(logrus.Fields{
				"lock":    path,
				"timeout": timeout,
			}).Info("Cache locked by another writer, waiting")
			waited = true
		}

		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	observability.LockWaitDuration.Observe(time.Since(started).Seconds())

	return &Guard{log: log, f: f, path: path}, nil
}

// Release unlocks and closes the sentinel file. Safe to call more than
// once; the sentinel file itself is left in place, its presence carries no
// state beyond lock ownership.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true

	if err := unlockFile(g.f); err != nil {
		g.f.Close()
		return err
	}

	return g.f.Close()
}
