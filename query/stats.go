package query

// Stats counts the work done by queries.
type Stats struct {
	// Queries is the number of queries answered.
	Queries int64
	// Humans is the number of humans reconstructed, summed over queries.
	Humans int64
	// Fragments is the number of tile fragments stitched.
	Fragments int64
	// CacheHits and CacheMisses count translator cache lookups.
	CacheHits, CacheMisses int64
	// MemoHits counts phases whose call list was already reconstructed by
	// the same query.
	MemoHits int64
	// WalkSteps counts the positions visited by around-locus walks.
	WalkSteps int64
	// Fetches counts single-position population requests.
	Fetches int64
}

// Merge adds the counters of o to s.
func (s *Stats) Merge(o Stats) {
	s.Queries += o.Queries
	s.Humans += o.Humans
	s.Fragments += o.Fragments
	s.CacheHits += o.CacheHits
	s.CacheMisses += o.CacheMisses
	s.MemoHits += o.MemoHits
	s.WalkSteps += o.WalkSteps
	s.Fetches += o.Fetches
}
