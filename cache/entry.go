package cache

import "time"

// Presence records which tiers an entry was written to.
type Presence struct {
	L1 bool `json:"l1"`
	L2 bool `json:"l2"`
	L3 bool `json:"l3"`
}

// Metadata is the bookkeeping stored next to every cached value.
// Timestamps are Unix milliseconds and TTL is in milliseconds, matching
// the on-disk format.
type Metadata struct {
	Key            string   `json:"key"`
	CreatedAt      int64    `json:"createdAt"`
	UpdatedAt      int64    `json:"updatedAt"`
	AccessCount    uint64   `json:"accessCount"`
	LastAccessedAt int64    `json:"lastAccessedAt"`
	TTL            int64    `json:"ttl"`
	Layers         Presence `json:"layers"`
}

// Entry is a cached value plus its metadata. Entries are copied by value
// between tiers; no tier shares mutable state with another.
type Entry[V any] struct {
	Value V        `json:"value"`
	Meta  Metadata `json:"metadata"`
}

// newEntry builds a fresh entry with createdAt=updatedAt=now and accessCount=1.
func newEntry[V any](key string, v V, nowMs int64, ttl time.Duration, layers Presence) Entry[V] {
	return Entry[V]{
		Value: v,
		Meta: Metadata{
			Key:            key,
			CreatedAt:      nowMs,
			UpdatedAt:      nowMs,
			AccessCount:    1,
			LastAccessedAt: nowMs,
			TTL:            ttl.Milliseconds(),
			Layers:         layers,
		},
	}
}

// Expired reports whether now - updatedAt > ttl.
func (e Entry[V]) Expired(nowMs int64) bool {
	return nowMs-e.Meta.UpdatedAt > e.Meta.TTL
}

// expiredAfter applies an explicit TTL instead of the entry's own.
func (e Entry[V]) expiredAfter(nowMs int64, ttl time.Duration) bool {
	return nowMs-e.Meta.UpdatedAt > ttl.Milliseconds()
}
