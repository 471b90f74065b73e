package cache

// RemoteTier is the capability the Layer needs from the slow/long-term L3
// store. The Layer treats it as advisory: when IsAvailable reports false
// every L3 step is skipped, and L3 errors are logged and swallowed.
//
// Implementations own their timeouts; the Layer never imposes one.
type RemoteTier[V any] interface {
	IsAvailable() bool
	Get(ns, key string) (V, bool)
	Set(ns, key string, v V) error
	Delete(ns, key string) error
}

// Unavailable is a RemoteTier that never answers. It is the default when
// no remote store is configured and is a complete implementation: the
// Layer simply runs as a two-tier cache.
type Unavailable[V any] struct{}

func (Unavailable[V]) IsAvailable() bool { return false }

func (Unavailable[V]) Get(string, string) (V, bool) {
	var zero V
	return zero, false
}

func (Unavailable[V]) Set(string, string, V) error { return nil }
func (Unavailable[V]) Delete(string, string) error { return nil }

var _ RemoteTier[string] = Unavailable[string]{}
