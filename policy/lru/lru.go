// Package lru implements the LRU recency policy.
package lru

import "github.com/IvanBrykalov/tiercache/policy"

// lru is a classic "move-to-front" Least-Recently-Used policy.
// It delegates list manipulation to policy.Hooks provided by the index.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory that constructs LRU instances.
func New() policy.Policy { return lruPolicy{} }

// New implements policy.Policy by binding index hooks.
func (lruPolicy) New(h policy.Hooks) policy.IndexPolicy {
	return &lru{h: h}
}

// OnAdd places the new entry at MRU. LRU itself doesn't choose evictions;
// the index enforces its capacity and performs actual evictions.
func (p *lru) OnAdd(n policy.Handle) policy.Handle {
	p.h.PushFront(n)
	return policy.Nil
}

// OnGet promotes the entry to MRU.
func (p *lru) OnGet(n policy.Handle) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry to MRU (updates are treated as recent use).
func (p *lru) OnUpdate(n policy.Handle) { p.h.MoveToFront(n) }

// OnRemove is a no-op for pure LRU.
func (p *lru) OnRemove(policy.Handle) {}
