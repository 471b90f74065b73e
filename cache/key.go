package cache

import "strings"

// KeySeparator joins the namespace and id parts of a cache key.
const KeySeparator = ":"

// JoinKey builds a "<namespace>:<id>" key.
func JoinKey(ns, id string) string { return ns + KeySeparator + id }

// SplitKey splits key on the first separator. ok is false when key has no
// namespace part; id is then the whole key.
func SplitKey(key string) (ns, id string, ok bool) {
	ns, id, ok = strings.Cut(key, KeySeparator)
	if !ok {
		return "", key, false
	}
	return ns, id, true
}
