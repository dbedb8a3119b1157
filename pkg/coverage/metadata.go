package coverage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradeflow/candlecache/pkg/observability"
)

// DefaultLookback is how far behind the last cache write a delta fetch
// reaches by default, so candles that were not yet final when first
// observed get re-fetched.
const DefaultLookback = 48 * time.Hour

// Metadata is the durable map of pair ID to fetched coverage interval.
//
// It is loaded from a JSON file at the start of a cache session, mutated
// in memory via Update, and persisted with Save. The last-modified time is
// derived from the file's own mtime rather than an in-process clock so it
// survives process restarts.
type Metadata struct {
	Pairs map[PairID]*Interval `json:"pairs"`

	log            logrus.FieldLogger
	path           string
	lastModifiedAt *time.Time
}

// New returns an empty metadata store with no file path associated.
func New(log logrus.FieldLogger) *Metadata {
	return &Metadata{
		Pairs: make(map[PairID]*Interval),
		log:   log,
	}
}

// Load reads the metadata store from path, returning an empty store when
// the file does not exist. A file that exists but cannot be parsed is
// treated as empty with a warning: the cache is a re-derivable acceleration
// structure, never a source of truth. Other filesystem errors propagate.
func Load(log logrus.FieldLogger, path string) (*Metadata, error) {
	m := New(log)
	m.path = path

	raw, err := os.ReadFile(path) //nolint:gosec // Caller-provided cache path
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("No metadata file found, initializing new metadata")
			return m, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(raw, m); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to parse metadata file, using empty metadata instead")
		return New(log).withPath(path), nil
	}

	if m.Pairs == nil {
		m.Pairs = make(map[PairID]*Interval)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		mtime := info.ModTime()
		m.lastModifiedAt = &mtime
	}

	log.WithField("path", path).Debug("Using candle metadata file")

	return m, nil
}

func (m *Metadata) withPath(path string) *Metadata {
	m.path = path
	return m
}

// Get returns the coverage interval recorded for a pair, or a zero interval
// when the pair has never been seen. The lookup never materializes an
// entry; only Update does.
func (m *Metadata) Get(id PairID) Interval {
	if entry, ok := m.Pairs[id]; ok {
		return *entry
	}
	return Interval{}
}

// LatestEndTime returns the maximum end time across all pairs, or nil if no
// pair has recorded coverage. This is the global frontier the partitioning
// gap rule compares against.
func (m *Metadata) LatestEndTime() *time.Time {
	var latest *time.Time
	for _, entry := range m.Pairs {
		if entry.EndTime == nil {
			continue
		}
		if latest == nil || entry.EndTime.After(*latest) {
			latest = entry.EndTime
		}
	}
	return latest
}

// LastModifiedAt returns the file modification time captured at load or
// after the last successful save, or nil if the store was never persisted.
func (m *Metadata) LastModifiedAt() *time.Time {
	return m.lastModifiedAt
}

// Update widens the coverage interval of every given pair with the fetched
// range, creating entries for pairs not seen before. In-memory only;
// durability requires Save.
func (m *Metadata) Update(ids []PairID, startTime, endTime time.Time) {
	for _, id := range ids {
		entry, ok := m.Pairs[id]
		if !ok {
			entry = &Interval{}
			m.Pairs[id] = entry
		}
		entry.Update(startTime, endTime)
	}

	m.log.WithFields(logrus.Fields{
		"updated": len(ids),
		"total":   len(m.Pairs),
	}).Debug("Updated pair coverage")
}

// Save atomically persists the store to the file it was loaded from, then
// re-reads the committed file's mtime as the new last-modified time.
// Returns ErrNoSavePath when the store has no associated path.
func (m *Metadata) Save() error {
	if m.path == "" {
		return ErrNoSavePath
	}

	started := time.Now()

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	if err := atomicWrite(m.path, raw); err != nil {
		return err
	}

	info, err := os.Stat(m.path)
	if err != nil {
		return err
	}
	mtime := info.ModTime()
	m.lastModifiedAt = &mtime

	observability.SaveDuration.WithLabelValues("meta").Observe(time.Since(started).Seconds())

	m.log.WithFields(logrus.Fields{
		"path":  m.path,
		"pairs": len(m.Pairs),
	}).Debug("Wrote candle metadata file")

	return nil
}

// PartitionForFetch classifies the requested pairs for the inclusive window
// [startTime, endTime], in this precedence order per pair:
//
//  1. never cached: full fetch
//  2. requested start precedes cached start: full fetch, since delta
//     fetches only extend the right edge
//  3. requested end within cached end: no fetch
//  4. cached end trails the global frontier: full fetch, so a hole cannot
//     open between this pair's old end and the frontier
//  5. otherwise: delta fetch of the missing right edge only
func (m *Metadata) PartitionForFetch(ids []PairID, startTime, endTime time.Time) Partition {
	latest := m.LatestEndTime()

	partition := Partition{
		FullFetch:  make(map[PairID]struct{}),
		DeltaFetch: make(map[PairID]struct{}),
	}

	satisfied := 0

	for _, id := range ids {
		entry := m.Get(id)

		switch {
		case entry.StartTime == nil || entry.EndTime == nil:
			// New pair, need full history
			partition.FullFetch[id] = struct{}{}
		case startTime.Before(*entry.StartTime):
			// Need data before what we have cached
			partition.FullFetch[id] = struct{}{}
		case !endTime.After(*entry.EndTime):
			// All requested data already cached
			satisfied++
		case latest.After(*entry.EndTime):
			// Gap between this pair's cached data and the global frontier
			partition.FullFetch[id] = struct{}{}
		default:
			partition.DeltaFetch[id] = struct{}{}
		}
	}

	observability.PartitionOutcomes.WithLabelValues("full").Add(float64(len(partition.FullFetch)))
	observability.PartitionOutcomes.WithLabelValues("delta").Add(float64(len(partition.DeltaFetch)))
	observability.PartitionOutcomes.WithLabelValues("satisfied").Add(float64(satisfied))

	m.log.WithFields(logrus.Fields{
		"full":  len(partition.FullFetch),
		"delta": len(partition.DeltaFetch),
	}).Info("Pair candle fetch partition")

	return partition
}

// DeltaFetchStartTime returns the earliest safe timestamp a delta fetch
// should start from, or nil when the store was never persisted.
//
// The result is the earlier of the freshness cutoff (last modified minus
// the lookback window, re-covering candles that may not have been final)
// and the global frontier (avoiding a gap against the last known data).
func (m *Metadata) DeltaFetchStartTime(lookback time.Duration) *time.Time {
	if m.lastModifiedAt == nil {
		return nil
	}

	cutoff := m.lastModifiedAt.Add(-lookback)

	latest := m.LatestEndTime()
	if latest != nil && latest.Before(cutoff) {
		t := *latest
		return &t
	}

	return &cutoff
}

// atomicWrite writes data to a temporary file in the destination directory
// and renames it over path, so a crash mid-write never corrupts the
// previously committed file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return nil
}
