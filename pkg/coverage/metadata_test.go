package coverage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeflow/candlecache/internal/testutil"
	"github.com/tradeflow/candlecache/pkg/coverage"
)

func metaPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "candles-1h.meta")
}

func TestMetadata_LoadMissingFile(t *testing.T) {
	meta, err := coverage.Load(testutil.Logger(), metaPath(t))
	require.NoError(t, err)

	assert.Empty(t, meta.Pairs)
	assert.Nil(t, meta.LastModifiedAt())
	assert.Nil(t, meta.LatestEndTime())
}

func TestMetadata_LoadExistingFile(t *testing.T) {
	path := metaPath(t)
	payload := `{
	  "pairs": {
	    "1": {"start_time": "2023-01-01T00:00:00Z", "end_time": "2023-01-15T23:59:59Z"}
	  }
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	meta, err := coverage.Load(testutil.Logger(), path)
	require.NoError(t, err)

	require.Len(t, meta.Pairs, 1)
	entry := meta.Get(1)
	require.NotNil(t, entry.StartTime)
	require.NotNil(t, entry.EndTime)
	assert.True(t, entry.StartTime.Equal(ts(2023, 1, 1)))
	assert.True(t, entry.EndTime.Equal(time.Date(2023, 1, 15, 23, 59, 59, 0, time.UTC)))
	assert.NotNil(t, meta.LastModifiedAt())
}

func TestMetadata_LoadCorruptFile(t *testing.T) {
	path := metaPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	meta, err := coverage.Load(testutil.Logger(), path)
	require.NoError(t, err)

	// Corrupt metadata degrades to a cold cache, never a hard failure.
	assert.Empty(t, meta.Pairs)
	assert.Nil(t, meta.LastModifiedAt())

	// The degraded store must still be saveable to its original path.
	meta.Update([]coverage.PairID{1}, ts(2023, 1, 1), ts(2023, 1, 2))
	require.NoError(t, meta.Save())
}

func TestMetadata_SaveWithoutPath(t *testing.T) {
	meta := coverage.New(testutil.Logger())
	assert.ErrorIs(t, meta.Save(), coverage.ErrNoSavePath)
}

func TestMetadata_SaveSetsLastModifiedFromFile(t *testing.T) {
	path := metaPath(t)
	meta, err := coverage.Load(testutil.Logger(), path)
	require.NoError(t, err)
	require.Nil(t, meta.LastModifiedAt())

	meta.Update([]coverage.PairID{1}, ts(2023, 1, 1), ts(2023, 1, 31))
	require.NoError(t, meta.Save())

	modified := meta.LastModifiedAt()
	require.NotNil(t, modified)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, modified.Equal(info.ModTime()))
}

func TestMetadata_SaveLoadRoundTrip(t *testing.T) {
	path := metaPath(t)

	meta, err := coverage.Load(testutil.Logger(), path)
	require.NoError(t, err)

	meta.Update([]coverage.PairID{100}, time.Date(2023, 1, 1, 12, 30, 0, 0, time.UTC), time.Date(2023, 1, 15, 18, 45, 0, 0, time.UTC))
	meta.Update([]coverage.PairID{200}, ts(2023, 1, 10), ts(2023, 1, 31))
	meta.Pairs[300] = &coverage.Interval{} // pair with absent bounds

	require.NoError(t, meta.Save())

	restored, err := coverage.Load(testutil.Logger(), path)
	require.NoError(t, err)

	require.Len(t, restored.Pairs, 3)
	assert.True(t, restored.Get(100).StartTime.Equal(time.Date(2023, 1, 1, 12, 30, 0, 0, time.UTC)))
	assert.True(t, restored.Get(100).EndTime.Equal(time.Date(2023, 1, 15, 18, 45, 0, 0, time.UTC)))
	assert.True(t, restored.Get(200).StartTime.Equal(ts(2023, 1, 10)))
	assert.True(t, restored.Get(200).EndTime.Equal(ts(2023, 1, 31)))
	assert.True(t, restored.Get(300).IsZero())
	assert.NotNil(t, restored.LastModifiedAt())
}

func TestMetadata_GetDoesNotMaterialize(t *testing.T) {
	meta := coverage.New(testutil.Logger())

	entry := meta.Get(999)
	assert.True(t, entry.IsZero())
	assert.Empty(t, meta.Pairs, "read-only lookup must not create an entry")
}

func TestMetadata_UpdateCreatesAndWidens(t *testing.T) {
	meta := coverage.New(testutil.Logger())

	meta.Update([]coverage.PairID{100, 200}, ts(2023, 1, 1), ts(2023, 1, 31))
	require.Len(t, meta.Pairs, 2)
	assert.True(t, meta.Get(100).StartTime.Equal(ts(2023, 1, 1)))
	assert.True(t, meta.Get(200).EndTime.Equal(ts(2023, 1, 31)))

	// Widening an existing entry keeps the furthest extents.
	meta.Update([]coverage.PairID{100}, ts(2022, 12, 1), ts(2023, 2, 1))
	assert.True(t, meta.Get(100).StartTime.Equal(ts(2022, 12, 1)))
	assert.True(t, meta.Get(100).EndTime.Equal(ts(2023, 2, 1)))
	assert.True(t, meta.Get(200).EndTime.Equal(ts(2023, 1, 31)), "other pairs untouched")
}

func TestMetadata_LatestEndTime(t *testing.T) {
	meta := coverage.New(testutil.Logger())
	assert.Nil(t, meta.LatestEndTime())

	meta.Pairs[1] = &coverage.Interval{} // no bounds, ignored
	meta.Pairs[2] = &coverage.Interval{StartTime: tsp(2023, 1, 1), EndTime: tsp(2023, 1, 15)}
	meta.Pairs[3] = &coverage.Interval{StartTime: tsp(2023, 1, 10), EndTime: tsp(2023, 1, 31)}

	latest := meta.LatestEndTime()
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(ts(2023, 1, 31)))
}

func TestMetadata_PartitionForFetch(t *testing.T) {
	tests := []struct {
		name          string
		pairs         map[coverage.PairID]*coverage.Interval
		ids           []coverage.PairID
		requestStart  time.Time
		requestEnd    time.Time
		expectedFull  []coverage.PairID
		expectedDelta []coverage.PairID
	}{
		{
			name:         "never cached pair needs full fetch",
			pairs:        nil,
			ids:          []coverage.PairID{100},
			requestStart: ts(2023, 1, 1),
			requestEnd:   ts(2023, 1, 31),
			expectedFull: []coverage.PairID{100},
		},
		{
			name: "request older than cached start needs full fetch",
			pairs: map[coverage.PairID]*coverage.Interval{
				100: {StartTime: tsp(2023, 1, 15), EndTime: tsp(2023, 1, 31)},
			},
			ids:          []coverage.PairID{100},
			requestStart: ts(2023, 1, 1),
			requestEnd:   ts(2023, 1, 20),
			expectedFull: []coverage.PairID{100},
		},
		{
			name: "fully covered request needs no fetch",
			pairs: map[coverage.PairID]*coverage.Interval{
				100: {StartTime: tsp(2023, 1, 1), EndTime: tsp(2023, 1, 31)},
			},
			ids:          []coverage.PairID{100},
			requestStart: ts(2023, 1, 10),
			requestEnd:   ts(2023, 1, 20),
		},
		{
			name: "request end equal to cached end needs no fetch",
			pairs: map[coverage.PairID]*coverage.Interval{
				100: {StartTime: tsp(2023, 1, 1), EndTime: tsp(2023, 1, 31)},
			},
			ids:          []coverage.PairID{100},
			requestStart: ts(2023, 1, 10),
			requestEnd:   ts(2023, 1, 31),
		},
		{
			name: "pair at the global frontier gets a delta fetch",
			pairs: map[coverage.PairID]*coverage.Interval{
				100: {StartTime: tsp(2023, 1, 1), EndTime: tsp(2023, 1, 20)},
			},
			ids:           []coverage.PairID{100},
			requestStart:  ts(2023, 1, 10),
			requestEnd:    ts(2023, 1, 31),
			expectedDelta: []coverage.PairID{100},
		},
		{
			name: "pair behind the global frontier needs full fetch",
			pairs: map[coverage.PairID]*coverage.Interval{
				100: {StartTime: tsp(2023, 1, 1), EndTime: tsp(2023, 1, 15)},
				200: {StartTime: tsp(2023, 1, 1), EndTime: tsp(2023, 1, 31)},
			},
			ids:          []coverage.PairID{100},
			requestStart: ts(2023, 1, 10),
			requestEnd:   ts(2023, 2, 15),
			expectedFull: []coverage.PairID{100},
		},
		{
			name: "mixed pairs partition independently",
			pairs: map[coverage.PairID]*coverage.Interval{
				100: {StartTime: tsp(2023, 1, 1), EndTime: tsp(2023, 1, 31)}, // at frontier, delta
				300: {StartTime: tsp(2023, 1, 1), EndTime: tsp(2023, 1, 15)}, // trails frontier, full
			},
			ids:           []coverage.PairID{100, 200, 300}, // 200 never cached
			requestStart:  ts(2023, 1, 20),
			requestEnd:    ts(2023, 2, 15),
			expectedFull:  []coverage.PairID{200, 300},
			expectedDelta: []coverage.PairID{100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := coverage.New(testutil.Logger())
			for id, interval := range tt.pairs {
				meta.Pairs[id] = interval
			}

			partition := meta.PartitionForFetch(tt.ids, tt.requestStart, tt.requestEnd)

			assert.Equal(t, tt.expectedFull, partition.FullFetchIDs())
			assert.Equal(t, tt.expectedDelta, partition.DeltaFetchIDs())

			// Partitioning is a read-only classification.
			assert.Len(t, meta.Pairs, len(tt.pairs), "partitioning must not create entries")
		})
	}
}

func TestMetadata_DeltaFetchStartTime(t *testing.T) {
	t.Run("nil when never persisted", func(t *testing.T) {
		meta := coverage.New(testutil.Logger())
		assert.Nil(t, meta.DeltaFetchStartTime(coverage.DefaultLookback))
	})

	t.Run("freshness cutoff when no pair has coverage", func(t *testing.T) {
		meta, err := coverage.Load(testutil.Logger(), metaPath(t))
		require.NoError(t, err)
		require.NoError(t, meta.Save())

		lookback := 48 * time.Hour
		result := meta.DeltaFetchStartTime(lookback)
		require.NotNil(t, result)

		expected := meta.LastModifiedAt().Add(-lookback)
		assert.True(t, result.Equal(expected))
	})

	t.Run("min of freshness cutoff and frontier", func(t *testing.T) {
		meta, err := coverage.Load(testutil.Logger(), metaPath(t))
		require.NoError(t, err)

		// Frontier far in the past: it is the earlier of the two.
		meta.Update([]coverage.PairID{1}, ts(2023, 1, 1), ts(2023, 1, 31))
		require.NoError(t, meta.Save())

		result := meta.DeltaFetchStartTime(24 * time.Hour)
		require.NotNil(t, result)
		assert.True(t, result.Equal(ts(2023, 1, 31)))
	})

	t.Run("freshness cutoff wins when frontier is recent", func(t *testing.T) {
		meta, err := coverage.Load(testutil.Logger(), metaPath(t))
		require.NoError(t, err)

		// Frontier well ahead of the cutoff window.
		future := time.Now().UTC().Add(365 * 24 * time.Hour)
		meta.Update([]coverage.PairID{1}, ts(2023, 1, 1), future)
		require.NoError(t, meta.Save())

		lookback := 24 * time.Hour
		result := meta.DeltaFetchStartTime(lookback)
		require.NotNil(t, result)

		expected := meta.LastModifiedAt().Add(-lookback)
		assert.True(t, result.Equal(expected))
	})
}
