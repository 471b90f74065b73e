package cache

import (
	"github.com/IvanBrykalov/tiercache/policy"
)

// index is the L1 tier: a bounded key->entry map whose recency order is an
// arena-backed doubly linked list (head=MRU, tail=LRU). All operations are
// O(1) expected. index is not safe for concurrent use; the Layer serialises
// access under its mutex.
type index[V any] struct {
	m     map[string]policy.Handle
	nodes []node[V]
	free  []policy.Handle
	head  policy.Handle // MRU
	tail  policy.Handle // LRU
	len   int
	cap   int

	factory policy.Policy
	pol     policy.IndexPolicy

	onEvict func(key string, e Entry[V], reason EvictReason)
}

// newIndex builds an index with the given capacity and recency policy.
// A capacity of 0 is accepted: every Set then evicts immediately.
func newIndex[V any](capacity int, pol policy.Policy, onEvict func(string, Entry[V], EvictReason)) *index[V] {
	if capacity < 0 {
		capacity = 0
	}
	ix := &index[V]{
		m:       make(map[string]policy.Handle, capacity),
		nodes:   make([]node[V], 0, capacity),
		head:    policy.Nil,
		tail:    policy.Nil,
		cap:     capacity,
		factory: pol,
		onEvict: onEvict,
	}
	ix.pol = pol.New(indexHooks[V]{ix: ix})
	return ix
}

// Get returns a copy of the entry for key. An entry past its TTL is
// evicted (EvictTTL) and reported as missing. On hit the node moves to
// MRU and its access bookkeeping is updated.
func (ix *index[V]) Get(key string, nowMs int64) (Entry[V], bool) {
	h, ok := ix.m[key]
	if !ok {
		return Entry[V]{}, false
	}
	n := &ix.nodes[h]
	if n.entry.Expired(nowMs) {
		ix.evict(h, EvictTTL)
		return Entry[V]{}, false
	}
	ix.pol.OnGet(h)
	n.entry.Meta.AccessCount++
	n.entry.Meta.LastAccessedAt = nowMs
	return n.entry, true
}

// Peek returns the entry without touching recency, TTL or access counters.
func (ix *index[V]) Peek(key string) (Entry[V], bool) {
	h, ok := ix.m[key]
	if !ok {
		return Entry[V]{}, false
	}
	return ix.nodes[h].entry, true
}

// Set inserts or replaces key. Replacing promotes to MRU; inserting into a
// full index evicts the LRU node first.
func (ix *index[V]) Set(key string, e Entry[V]) {
	if h, ok := ix.m[key]; ok {
		ix.nodes[h].entry = e
		ix.pol.OnUpdate(h)
		return
	}

	if ix.cap > 0 && ix.len >= ix.cap {
		if tail := ix.tail; tail != policy.Nil {
			ix.evict(tail, EvictCapacity)
		}
	}

	h := ix.alloc(key, e)
	ix.m[key] = h
	if ev := ix.pol.OnAdd(h); ev != policy.Nil {
		ix.evict(ev, EvictPolicy)
	}

	// Only reachable with a zero capacity.
	for ix.len > ix.cap && ix.tail != policy.Nil {
		ix.evict(ix.tail, EvictCapacity)
	}
}

// Replace swaps the entry stored under key without changing recency.
// It reports false when key is not resident.
func (ix *index[V]) Replace(key string, e Entry[V]) bool {
	h, ok := ix.m[key]
	if !ok {
		return false
	}
	ix.nodes[h].entry = e
	return true
}

// Remove deletes key if present. Explicit removal is not an eviction.
func (ix *index[V]) Remove(key string) bool {
	h, ok := ix.m[key]
	if !ok {
		return false
	}
	ix.pol.OnRemove(h)
	ix.unlink(h)
	delete(ix.m, key)
	ix.release(h)
	return true
}

// Clear drops every entry and resets policy state.
func (ix *index[V]) Clear() {
	clear(ix.m)
	ix.nodes = ix.nodes[:0]
	ix.free = ix.free[:0]
	ix.head, ix.tail = policy.Nil, policy.Nil
	ix.len = 0
	ix.pol = ix.factory.New(indexHooks[V]{ix: ix})
}

// Len returns the number of resident entries.
func (ix *index[V]) Len() int { return ix.len }

// Keys returns resident keys from MRU to LRU.
func (ix *index[V]) Keys() []string {
	keys := make([]string, 0, ix.len)
	for h := ix.head; h != policy.Nil; h = ix.nodes[h].next {
		keys = append(keys, ix.nodes[h].key)
	}
	return keys
}

// -------------------- internals --------------------

// alloc takes a slot from the free list (or grows the arena).
func (ix *index[V]) alloc(key string, e Entry[V]) policy.Handle {
	n := node[V]{key: key, entry: e, prev: policy.Nil, next: policy.Nil}
	if last := len(ix.free) - 1; last >= 0 {
		h := ix.free[last]
		ix.free = ix.free[:last]
		ix.nodes[h] = n
		return h
	}
	ix.nodes = append(ix.nodes, n)
	return policy.Handle(len(ix.nodes) - 1)
}

// release zeroes the slot so the entry can be collected, then frees it.
func (ix *index[V]) release(h policy.Handle) {
	ix.nodes[h] = node[V]{prev: policy.Nil, next: policy.Nil}
	ix.free = append(ix.free, h)
}

// pushFront links h at MRU in O(1).
func (ix *index[V]) pushFront(h policy.Handle) {
	n := &ix.nodes[h]
	n.prev = policy.Nil
	n.next = ix.head
	if ix.head != policy.Nil {
		ix.nodes[ix.head].prev = h
	}
	ix.head = h
	if ix.tail == policy.Nil {
		ix.tail = h
	}
	ix.len++
}

// moveToFront promotes h to MRU in O(1).
func (ix *index[V]) moveToFront(h policy.Handle) {
	if h == ix.head {
		return
	}
	ix.unlink(h)
	ix.pushFront(h)
}

// unlink detaches h from the list in O(1).
func (ix *index[V]) unlink(h policy.Handle) {
	n := &ix.nodes[h]
	if n.prev != policy.Nil {
		ix.nodes[n.prev].next = n.next
	}
	if n.next != policy.Nil {
		ix.nodes[n.next].prev = n.prev
	}
	if ix.head == h {
		ix.head = n.next
	}
	if ix.tail == h {
		ix.tail = n.prev
	}
	n.prev, n.next = policy.Nil, policy.Nil
	ix.len--
}

// evict removes h and notifies onEvict.
func (ix *index[V]) evict(h policy.Handle, reason EvictReason) {
	n := ix.nodes[h]
	ix.pol.OnRemove(h)
	ix.unlink(h)
	delete(ix.m, n.key)
	ix.release(h)
	if ix.onEvict != nil {
		ix.onEvict(n.key, n.entry, reason)
	}
}

// -------------------- policy hooks --------------------

// indexHooks adapts the index's list operations to policy.Hooks.
type indexHooks[V any] struct{ ix *index[V] }

func (h indexHooks[V]) MoveToFront(n policy.Handle) { h.ix.moveToFront(n) }
func (h indexHooks[V]) PushFront(n policy.Handle)   { h.ix.pushFront(n) }
func (h indexHooks[V]) Remove(n policy.Handle)      { h.ix.unlink(n) }
func (h indexHooks[V]) Back() policy.Handle         { return h.ix.tail }
func (h indexHooks[V]) Len() int                    { return h.ix.len }
func (h indexHooks[V]) Key(n policy.Handle) string  { return h.ix.nodes[n].key }
