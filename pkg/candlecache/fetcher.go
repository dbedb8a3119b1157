package candlecache

import (
	"context"
	"time"

	"github.com/tradeflow/candlecache/pkg/coverage"
	"github.com/tradeflow/candlecache/pkg/series"
)

// Fetcher is the remote data source collaborator. The cache decides when
// and for which pairs to call it; transport, retries and authentication
// are the implementation's concern.
type Fetcher interface {
	// FetchCandles returns candle rows for the given pairs covering the
	// inclusive [startTime, endTime] window.
	FetchCandles(ctx context.Context, ids []coverage.PairID, startTime, endTime time.Time) ([]series.Candle, error)
}

// Sync brings the cache up to date for the requested pairs and window in
// one call: partition, fetch full-history pairs over the whole window,
// fetch delta pairs from the freshness-adjusted delta start, then merge and
// persist. When every pair is already covered nothing is fetched or
// written.
func (c *Cache) Sync(ctx context.Context, fetcher Fetcher, ids []coverage.PairID, startTime, endTime time.Time) error {
	c.mustBeOpen()

	partition := c.meta.PartitionForFetch(ids, startTime, endTime)
	if !partition.NeedsFetch() {
		return nil
	}

	type fetched struct {
		ids   []coverage.PairID
		start time.Time
	}

	var (
		batches [][]series.Candle
		groups  []fetched
	)

	if len(partition.FullFetch) > 0 {
		fullIDs := partition.FullFetchIDs()
		rows, err := fetcher.FetchCandles(ctx, fullIDs, startTime, endTime)
		if err != nil {
			return err
		}
		batches = append(batches, rows)
		groups = append(groups, fetched{ids: fullIDs, start: startTime})
	}

	if len(partition.DeltaFetch) > 0 {
		deltaStart := startTime
		if ds := c.meta.DeltaFetchStartTime(c.cfg.Lookback); ds != nil {
			deltaStart = *ds
		}

		deltaIDs := partition.DeltaFetchIDs()
		rows, err := fetcher.FetchCandles(ctx, deltaIDs, deltaStart, endTime)
		if err != nil {
			return err
		}
		batches = append(batches, rows)
		groups = append(groups, fetched{ids: deltaIDs, start: deltaStart})
	}

	if err := c.data.Update(batches); err != nil {
		return err
	}

	for _, g := range groups {
		c.meta.Update(g.ids, g.start, endTime)
	}

	return c.meta.Save()
}
