package cache

import "github.com/IvanBrykalov/tiercache/policy"

// node is an arena slot owned by the L1 index. Links are handles into the
// same arena, so nodes never alias each other through pointers.
type node[V any] struct {
	key   string
	entry Entry[V]

	// List links: head is MRU, tail is LRU. policy.Nil terminates.
	prev policy.Handle
	next policy.Handle
}
