// Package twoq implements the 2Q recency policy for the L1 index.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/tiercache/policy"
)

// twoQ implements the 2Q eviction policy.
//
// Resident queues:
//   - A1in (younger queue): its own list + index by handle; admits first-time keys
//   - Am   (mature queue):  handles not present in inIdx; ordering is driven by index hooks
//
// Ghost A1out: keys only (no values), tracks recently evicted A1in keys to give them
// a second chance (bypass A1in on re-admission).
//
// Concurrency: all methods are called under the cache lock.
type twoQ struct {
	h policy.Hooks

	capIn    int
	capGhost int

	// A1in: MRU at Front() -> LRU at Back()
	inList *list.List
	inIdx  map[policy.Handle]*list.Element // element.Value is policy.Handle

	// A1out (ghosts): keys only, MRU at Front() -> LRU at Back()
	ghostList *list.List
	ghostIdx  map[string]*list.Element // element.Value is string
}

// New constructs a 2Q policy factory.
// Common choices: capIn ≈ 25% of L1 capacity; capGhost ≈ 50–100% of L1 capacity.
func New(capIn, capGhost int) policy.Policy {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy{capIn: capIn, capGhost: capGhost}
}

type twoQPolicy struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy) New(h policy.Hooks) policy.IndexPolicy {
	return &twoQ{
		h:         h,
		capIn:     p.capIn,
		capGhost:  p.capGhost,
		inList:    list.New(),
		inIdx:     make(map[policy.Handle]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[string]*list.Element),
	}
}

// OnAdd admission rules:
//   - If the key is in ghosts (A1out), bypass A1in and admit directly to Am (MRU).
//   - Otherwise admit into A1in (and MRU in the index list via hooks).
//   - If A1in overflows, return its LRU candidate to the index for eviction.
func (q *twoQ) OnAdd(n policy.Handle) policy.Handle {
	k := q.h.Key(n)
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		q.h.PushFront(n)
		return policy.Nil
	}

	q.h.PushFront(n)
	q.inIdx[n] = q.inList.PushFront(n)

	if q.inList.Len() > q.capIn {
		if lruEl := q.inList.Back(); lruEl != nil {
			return lruEl.Value.(policy.Handle)
		}
	}
	return policy.Nil
}

// OnGet: if the node was in A1in, remove it from A1in (promotion to Am),
// then move it to MRU in the index list.
func (q *twoQ) OnGet(n policy.Handle) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToFront(n)
}

// OnUpdate follows OnGet semantics.
func (q *twoQ) OnUpdate(n policy.Handle) { q.OnGet(n) }

// OnRemove remembers keys leaving A1in as ghosts, respecting capGhost.
// Removals from Am do NOT populate ghosts.
func (q *twoQ) OnRemove(n policy.Handle) {
	el, ok := q.inIdx[n]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)

	k := q.h.Key(n)
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(string))
		q.ghostList.Remove(tail)
	}
}
