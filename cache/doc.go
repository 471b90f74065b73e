// Package cache provides a generic three-tier cache: an in-memory LRU tier
// (L1), a disk-backed JSON tier with TTL (L2), and an optional slow/remote
// long-term tier (L3).
//
// Design
//
//   - Cascade: Get checks L1, then L2, then L3 (when available). A hit below
//     L1 is promoted upward as a fresh entry (createdAt=updatedAt=now,
//     accessCount=1, tier-specific TTL).
//
//   - Write-through: Set writes L1, then L2, then L3 synchronously. L2 and L3
//     failures are logged (logrus) and swallowed; the cache is an accelerator,
//     not a source of truth.
//
//   - L1: a fixed-capacity map over an arena-backed doubly linked list.
//     Links are slice indices (policy.Handle), not pointers. The recency
//     policy is pluggable via the policy package; LRU is the default and 2Q
//     is available through Config.L1Policy. TTL expiry is lazy on read and
//     counts as an eviction.
//
//   - L2: one file per namespace, <CacheDir>/<Namespace>_<FileName>, holding
//     a JSON object of key -> {value, metadata}. Missing or malformed files
//     read as an empty tier. Writes are whole-file, via temp file + rename.
//
//   - L3: any RemoteTier. Unavailable is the default; remote/sqlite and
//     remote/s3 provide real backends. L3 is never called while the Layer
//     mutex is held, and concurrent misses for the same key are coalesced.
//
//   - Lifecycle: New performs no I/O. Initialize validates Config and is the
//     only call that fails on configuration problems. Before Initialize (and
//     after Destroy) Get reports a miss and every other call returns
//     ErrNotInitialized.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Promote/Error/Size
//     signals. NoopMetrics is the default; metrics/prom exports them to
//     Prometheus. GetStats returns the same counters as a snapshot.
//
// Basic usage
//
//	cfg := cache.DefaultConfig()
//	cfg.Namespace = "embeddings"
//	c := cache.New[[]float32](cache.Options[[]float32]{Config: cfg})
//	if err := c.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Destroy()
//
//	_ = c.Set(cache.JoinKey("embeddings", "doc-42"), vec)
//	if v, ok := c.Get(cache.JoinKey("embeddings", "doc-42")); ok {
//	    _ = v
//	}
//
// With a long-term tier
//
//	store, err := sqlite.Open[[]float32](sqlite.Config{Path: "/var/lib/agents/l3.db", TTL: cfg.L3TTL})
//	c := cache.New[[]float32](cache.Options[[]float32]{Config: cfg, Remote: store})
//
// Caller contract
//
// One Layer owns one namespace file. Two Layers (or processes) pointed at
// the same namespace and directory at once is unsupported.
package cache
