// Package testutil provides shared fixtures for candle cache tests.
package testutil

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradeflow/candlecache/pkg/coverage"
	"github.com/tradeflow/candlecache/pkg/series"
)

// Logger returns a quiet logger for tests.
func Logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// BasePath returns a cache base path inside a per-test temp directory.
func BasePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "candles-1h")
}

// Candles builds n hourly candles for a pair starting at start. Prices are
// deterministic from the row index so merges are easy to assert on.
func Candles(pairID coverage.PairID, start time.Time, n int) []series.Candle {
	out := make([]series.Candle, 0, n)
	for i := 0; i < n; i++ {
		base := float64(i + 1)
		out = append(out, series.Candle{
			PairID:    pairID,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      base,
			High:      base + 0.5,
			Low:       base - 0.5,
			Close:     base + 0.25,
			Volume:    base * 100,
		})
	}
	return out
}

// Time is shorthand for a UTC timestamp.
func Time(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
