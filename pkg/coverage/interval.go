// Package coverage tracks which time ranges of candle data have been fetched
// for each trading pair, and decides how much of a new request can be served
// from cache.
//
// The metadata file stores a map of pair IDs, with a start_time and end_time
// per pair. These values represent the range of candles that have been
// fetched, which may be wider than the candles actually stored - e.g. if a
// pair started trading later than the earliest requested start date.
package coverage

import "time"

// PairID identifies one trading pair in the cache.
type PairID int64

// Interval is the inclusive [start, end] range of candle data known to be
// fetched for one pair. Both bounds are nil until the first fetch is
// recorded.
type Interval struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// Update widens the interval to include the new range. The interval never
// shrinks: the earliest start and latest end seen so far are retained.
func (i *Interval) Update(startTime, endTime time.Time) {
	if i.StartTime == nil || startTime.Before(*i.StartTime) {
		t := startTime
		i.StartTime = &t
	}

	if i.EndTime == nil || endTime.After(*i.EndTime) {
		t := endTime
		i.EndTime = &t
	}
}

// IsZero reports whether no fetch has ever been recorded for the pair.
func (i Interval) IsZero() bool {
	return i.StartTime == nil && i.EndTime == nil
}
