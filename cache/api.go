package cache

// Cache is the capability handed to consumers (embedding generation, agent
// selection, retry bookkeeping, ...). They decide what to cache; the cache
// decides where it lives.
//
// All methods are safe for concurrent use by multiple goroutines.
type Cache[V any] interface {
	// Initialize validates the configuration and opens the tiers.
	// It is the only call that reports configuration problems.
	Initialize() error

	// Get cascades L1 -> L2 -> L3 and promotes hits toward L1.
	// Lower-tier failures degrade to a miss; Get never fails.
	Get(key string) (V, bool)

	// Set writes through L1, L2 and (best effort) L3.
	// Only ErrNotInitialized is ever returned.
	Set(key string, v V) error

	// Invalidate removes key from every tier.
	// Only ErrNotInitialized is ever returned.
	Invalidate(key string) error

	// Clear empties L1 and the namespace's L2 file and resets the stats.
	// L3 is shared between namespaces and left untouched.
	Clear() error

	// GetStats returns a snapshot of the counters.
	GetStats() Stats

	// Destroy releases in-memory state and stops background work.
	// Every write is already persisted, so nothing is flushed.
	Destroy()
}

var _ Cache[string] = (*Layer[string])(nil)
