package cache

import "github.com/IvanBrykalov/tiercache/internal/util"

// Stats is a point-in-time snapshot of the Layer counters. Counters only
// grow; they reset on process restart or Layer.Clear.
type Stats struct {
	L1Hits     uint64 `json:"l1Hits"`
	L1Misses   uint64 `json:"l1Misses"`
	L2Hits     uint64 `json:"l2Hits"`
	L2Misses   uint64 `json:"l2Misses"`
	L3Hits     uint64 `json:"l3Hits"`
	L3Misses   uint64 `json:"l3Misses"`
	Evictions  uint64 `json:"evictions"`
	Promotions uint64 `json:"promotions"`
}

// Hits is the total number of lookups answered by any tier.
func (s Stats) Hits() uint64 { return s.L1Hits + s.L2Hits + s.L3Hits }

// HitRatio is Hits over the number of Get calls that reached the cache.
// Every Get counts exactly once as an L1 hit or an L1 miss.
func (s Stats) HitRatio() float64 {
	total := s.L1Hits + s.L1Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}

// counters are the live, lock-free counters behind Stats.
// Hot counters sit on separate cache lines to avoid false sharing.
type counters struct {
	l1Hits     util.PaddedAtomicUint64
	l1Misses   util.PaddedAtomicUint64
	l2Hits     util.PaddedAtomicUint64
	l2Misses   util.PaddedAtomicUint64
	l3Hits     util.PaddedAtomicUint64
	l3Misses   util.PaddedAtomicUint64
	evictions  util.PaddedAtomicUint64
	promotions util.PaddedAtomicUint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		L1Hits:     c.l1Hits.Load(),
		L1Misses:   c.l1Misses.Load(),
		L2Hits:     c.l2Hits.Load(),
		L2Misses:   c.l2Misses.Load(),
		L3Hits:     c.l3Hits.Load(),
		L3Misses:   c.l3Misses.Load(),
		Evictions:  c.evictions.Load(),
		Promotions: c.promotions.Load(),
	}
}

func (c *counters) reset() {
	for _, x := range []*util.PaddedAtomicUint64{
		&c.l1Hits, &c.l1Misses, &c.l2Hits, &c.l2Misses,
		&c.l3Hits, &c.l3Misses, &c.evictions, &c.promotions,
	} {
		x.Store(0)
	}
}
