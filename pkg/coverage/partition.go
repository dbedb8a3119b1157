package coverage

import "sort"

// Partition classifies requested pairs by how they must be fetched. Pairs
// already fully covered by the cache appear in neither set.
type Partition struct {
	FullFetch  map[PairID]struct{}
	DeltaFetch map[PairID]struct{}
}

// FullFetchIDs returns the full-fetch pairs as a sorted slice.
func (p Partition) FullFetchIDs() []PairID {
	return sortedIDs(p.FullFetch)
}

// DeltaFetchIDs returns the delta-fetch pairs as a sorted slice.
func (p Partition) DeltaFetchIDs() []PairID {
	return sortedIDs(p.DeltaFetch)
}

// NeedsFetch reports whether any pair requires a remote fetch.
func (p Partition) NeedsFetch() bool {
	return len(p.FullFetch) > 0 || len(p.DeltaFetch) > 0
}

func sortedIDs(set map[PairID]struct{}) []PairID {
	if len(set) == 0 {
		return nil
	}
	ids := make([]PairID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
