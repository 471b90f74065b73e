package cache

import (
	"github.com/sirupsen/logrus"
)

// EvictReason explains why an L1 entry was removed.
type EvictReason int

const (
	// EvictPolicy: removed by the active recency policy (e.g., LRU/2Q).
	EvictPolicy EvictReason = iota
	// EvictTTL: expired by TTL (lazy eviction on access).
	EvictTTL
	// EvictCapacity: removed to make room for a new entry.
	EvictCapacity
)

func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictCapacity:
		return "capacity"
	default:
		return "policy"
	}
}

// Tier identifies one level of the cache hierarchy.
type Tier int

const (
	TierL1 Tier = iota + 1
	TierL2
	TierL3
)

func (t Tier) String() string {
	switch t {
	case TierL1:
		return "l1"
	case TierL2:
		return "l2"
	case TierL3:
		return "l3"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit(t Tier)
	Miss(t Tier)
	Evict(reason EvictReason)
	// Promote is called when an entry found in tier from is copied upward.
	Promote(from Tier)
	// Error is called for every swallowed lower-tier failure.
	Error(t Tier, op string)
	Size(entries int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Layer. Zero values are safe; defaults are applied
// in New():
//   - nil Remote   => Unavailable (L3 skipped)
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => logrus.StandardLogger()
//   - nil Clock    => time.Now()
type Options[V any] struct {
	Config

	// Remote is the optional slow/long-term tier.
	Remote RemoteTier[V]

	// OnEvict is called for every L1 eviction under the cache lock;
	// keep callbacks lightweight.
	OnEvict func(key string, v V, reason EvictReason)
	Metrics Metrics

	// Logger receives warnings for swallowed L2/L3 failures.
	Logger logrus.FieldLogger

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}
