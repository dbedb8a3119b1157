package flock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeflow/candlecache/internal/testutil"
	"github.com/tradeflow/candlecache/pkg/flock"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return testutil.BasePath(t) + ".lock"
}

func TestGuard_AcquireRelease(t *testing.T) {
	guard, err := flock.Acquire(context.Background(), testutil.Logger(), lockPath(t), time.Second)
	require.NoError(t, err)
	require.NotNil(t, guard)

	require.NoError(t, guard.Release())
}

func TestGuard_ReleaseIsIdempotent(t *testing.T) {
	guard, err := flock.Acquire(context.Background(), testutil.Logger(), lockPath(t), time.Second)
	require.NoError(t, err)

	require.NoError(t, guard.Release())
	require.NoError(t, guard.Release())
}

func TestGuard_CreatesParentDirectories(t *testing.T) {
	path := t.TempDir() + "/nested/dirs/candles-1h.lock"

	guard, err := flock.Acquire(context.Background(), testutil.Logger(), path, time.Second)
	require.NoError(t, err)
	defer guard.Release()
}

func TestGuard_TimesOutWhileHeld(t *testing.T) {
	path := lockPath(t)
	ctx := context.Background()

	held, err := flock.Acquire(ctx, testutil.Logger(), path, time.Second)
	require.NoError(t, err)
	defer held.Release()

	started := time.Now()
	second, err := flock.Acquire(ctx, testutil.Logger(), path, 250*time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, flock.ErrTimeout)
	assert.Nil(t, second)
	assert.GreaterOrEqual(t, time.Since(started), 250*time.Millisecond)
}

func TestGuard_AcquireAfterRelease(t *testing.T) {
	path := lockPath(t)
	ctx := context.Background()

	first, err := flock.Acquire(ctx, testutil.Logger(), path, time.Second)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := flock.Acquire(ctx, testutil.Logger(), path, time.Second)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestGuard_ContextCancellation(t *testing.T) {
	path := lockPath(t)

	held, err := flock.Acquire(context.Background(), testutil.Logger(), path, time.Second)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = flock.Acquire(ctx, testutil.Logger(), path, 10*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuard_WaiterProceedsAfterRelease(t *testing.T) {
	path := lockPath(t)
	ctx := context.Background()

	held, err := flock.Acquire(ctx, testutil.Logger(), path, time.Second)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		guard, acquireErr := flock.Acquire(ctx, testutil.Logger(), path, 5*time.Second)
		if guard != nil {
			defer guard.Release()
		}
		acquired <- acquireErr
	}()

	// The waiter must still be blocked while the lock is held.
	select {
	case err := <-acquired:
		t.Fatalf("second acquire completed while lock held: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, held.Release())

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the lock after release")
	}
}
