package series

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"github.com/tradeflow/candlecache/pkg/coverage"
	"github.com/tradeflow/candlecache/pkg/observability"
)

// Store holds the combined candle table for all pairs, persisted as a
// single parquet file. The table is kept sorted by (pair, timestamp)
// ascending and deduplicated by the same key, last write wins.
type Store struct {
	log     logrus.FieldLogger
	path    string
	candles []Candle
}

// Load reads the series table from path. A missing file yields an empty
// table; a file that cannot be parsed also yields an empty table with a
// warning, since the cache can always be re-derived from the remote source.
func Load(log logrus.FieldLogger, path string) (*Store, error) {
	s := &Store{log: log, path: path}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("No cached candles file found, using empty table")
			return s, nil
		}
		return nil, err
	}

	rows, err := parquet.ReadFile[Candle](path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to load cached candles file, using empty table instead")
		return s, nil
	}

	s.candles = rows
	log.WithFields(logrus.Fields{
		"path": path,
		"rows": len(rows),
	}).Debug("Using cached candles file")

	return s, nil
}

// Candles returns the current table.
func (s *Store) Candles() []Candle {
	return s.candles
}

// Len returns the number of rows in the table.
func (s *Store) Len() int {
	return len(s.candles)
}

// Slice returns the rows for the given pairs within the inclusive
// [startTime, endTime] window.
func (s *Store) Slice(ids []coverage.PairID, startTime, endTime time.Time) []Candle {
	wanted := make(map[coverage.PairID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var out []Candle
	for _, c := range s.candles {
		if _, ok := wanted[c.PairID]; !ok {
			continue
		}
		if c.Timestamp.Before(startTime) || c.Timestamp.After(endTime) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Update merges the fetched batches into the table: rows are deduplicated
// by (pair, timestamp) with freshly supplied rows winning over cached ones,
// re-sorted, and persisted atomically. With no batches the table and the
// file are left untouched; recording that the range was checked is the
// metadata store's job, not ours.
func (s *Store) Update(batches [][]Candle) error {
	if len(batches) == 0 {
		return nil
	}

	fetched := 0

	index := make(map[rowKey]int, len(s.candles))
	merged := make([]Candle, 0, len(s.candles))

	appendRow := func(c Candle) {
		if at, ok := index[c.key()]; ok {
			merged[at] = c // last supplied row wins
			return
		}
		index[c.key()] = len(merged)
		merged = append(merged, c)
	}

	for _, c := range s.candles {
		appendRow(c)
	}
	for _, batch := range batches {
		fetched += len(batch)
		for _, c := range batch {
			appendRow(c)
		}
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Less(merged[j]) })

	s.candles = merged

	if err := s.save(); err != nil {
		return err
	}

	observability.RowsMerged.Add(float64(fetched))
	observability.TableRows.Set(float64(len(s.candles)))

	return nil
}

// save writes the table to a temporary file in the destination directory
// and renames it over the data file, so a crash mid-write never corrupts
// the previously committed table.
func (s *Store) save() error {
	started := time.Now()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := parquet.WriteFile(tmpPath, s.candles); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	observability.SaveDuration.WithLabelValues("data").Observe(time.Since(started).Seconds())

	if info, statErr := os.Stat(s.path); statErr == nil {
		s.log.WithFields(logrus.Fields{
			"path": s.path,
			"rows": len(s.candles),
			"size": info.Size(),
		}).Debug("Wrote cached candles file")
	}

	return nil
}
