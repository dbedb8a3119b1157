// Package series provides the durable, deduplicated table of cached candle
// rows across all trading pairs.
package series

import (
	"time"

	"github.com/tradeflow/candlecache/pkg/coverage"
)

// Candle is one OHLCV row of the combined series table.
type Candle struct {
	PairID    coverage.PairID `parquet:"pair_id" json:"pair_id"`
	Timestamp time.Time       `parquet:"timestamp" json:"timestamp"`
	Open      float64         `parquet:"open" json:"open"`
	High      float64         `parquet:"high" json:"high"`
	Low       float64         `parquet:"low" json:"low"`
	Close     float64         `parquet:"close" json:"close"`
	Volume    float64         `parquet:"volume" json:"volume"`
}

// rowKey is the deduplication key: no two rows may share it after a merge.
type rowKey struct {
	pairID coverage.PairID
	ts     int64
}

func (c Candle) key() rowKey {
	return rowKey{pairID: c.PairID, ts: c.Timestamp.UnixNano()}
}

// Less orders candles by (pair, timestamp) ascending, the invariant sort
// order of the persisted table.
func (c Candle) Less(other Candle) bool {
	if c.PairID != other.PairID {
		return c.PairID < other.PairID
	}
	return c.Timestamp.Before(other.Timestamp)
}
