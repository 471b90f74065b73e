package policy

// Handle is a stable index of a node inside the L1 arena.
// Handles are only meaningful to the index that issued them and may be
// recycled after the node is removed.
type Handle int32

// Nil is the "no node" handle (empty list end, missing neighbour).
const Nil Handle = -1

// Hooks expose O(1) list operations that a policy can use to manipulate
// the index's MRU/LRU list. Implementations are provided by the index.
//
// Concurrency: all hook calls happen under the cache lock.
// Important: hooks manage only the list; the index owns the key->handle map.
type Hooks interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Handle)
	// PushFront inserts the node at MRU (used on admission).
	PushFront(Handle)
	// Remove detaches the node from the list (map bookkeeping is done by the index).
	Remove(Handle)
	// Back returns the current LRU node (or Nil if empty).
	Back() Handle
	// Len returns the number of resident nodes.
	Len() int
	// Key returns the cache key stored at h.
	Key(Handle) string
}

// IndexPolicy is a policy instance bound to one index's hooks.
// All methods are invoked under the cache lock.
//
// Semantics:
//   - OnAdd may return an eviction candidate (e.g., LRU of a probation queue).
//     The index will evict that node and subsequently call OnRemove for it.
//     Nil means "no suggestion".
//   - OnGet/OnUpdate typically promote the node (e.g., move to MRU).
//   - OnRemove is a notification to update policy-internal state
//     (e.g., maintain ghost queues). The index performs actual deletion.
type IndexPolicy interface {
	OnAdd(Handle) (evict Handle)
	OnGet(Handle)
	OnUpdate(Handle)
	OnRemove(Handle)
}

// Policy is a factory that creates index-local policy instances.
type Policy interface {
	New(Hooks) IndexPolicy
}
