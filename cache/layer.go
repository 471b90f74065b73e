package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/internal/singleflight"
	"github.com/IvanBrykalov/tiercache/policy"
	"github.com/IvanBrykalov/tiercache/policy/lru"
	"github.com/IvanBrykalov/tiercache/policy/twoq"
)

var (
	// ErrNotInitialized is returned by mutating calls made before
	// Initialize or after Destroy.
	ErrNotInitialized = errors.New("cache: layer not initialized")

	// ErrInvalidConfig wraps every configuration problem reported by
	// Config.Validate and Layer.Initialize.
	ErrInvalidConfig = errors.New("cache: invalid configuration")
)

// errRemoteMiss marks an L3 miss inside the singleflight group.
var errRemoteMiss = errors.New("cache: remote miss")

// Layer ties L1 (memory), L2 (disk) and L3 (remote) together.
//
// One mutex serialises L1 and the L2 read-modify-write. L3 is never called
// with the mutex held: data is copied out, the lock released, the remote
// consulted, and the lock re-acquired only to apply a promotion.
type Layer[V any] struct {
	opt Options[V]
	log logrus.FieldLogger
	l3  RemoteTier[V]

	// ---- guarded by mu ----
	mu          sync.Mutex
	initialized bool
	l1          *index[V]
	l2          *diskStore[V]
	cancel      context.CancelFunc

	// reads stamps keys with an L3 read in flight; guarded by mu.
	reads map[string]*remoteRead

	sf    singleflight.Group[string, V]
	stats counters
	wg    sync.WaitGroup
}

// remoteRead is the write generation of a key while L3 reads of it are
// outstanding. A read whose generation moved on must not be applied.
type remoteRead struct {
	gen  uint64
	refs int
}

// New constructs a Layer. It performs no I/O; call Initialize before use.
// Defaults:
//   - nil Remote   -> Unavailable
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> logrus.StandardLogger()
//   - zero L2TTL/L3TTL/FileName/L1Policy/RefreshConcurrency -> package defaults
func New[V any](opt Options[V]) *Layer[V] {
	if opt.Remote == nil {
		opt.Remote = Unavailable[V]{}
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	if opt.L2TTL == 0 {
		opt.L2TTL = DefaultL2TTL
	}
	if opt.L3TTL == 0 {
		opt.L3TTL = DefaultL3TTL
	}
	if opt.FileName == "" {
		opt.FileName = DefaultFileName
	}
	if opt.L1Policy == "" {
		opt.L1Policy = "lru"
	}
	if opt.RefreshConcurrency <= 0 {
		opt.RefreshConcurrency = DefaultRefreshConcurrency
	}
	return &Layer[V]{
		opt:   opt,
		log:   opt.Logger.WithField("namespace", opt.Namespace),
		l3:    opt.Remote,
		reads: make(map[string]*remoteRead),
	}
}

// Initialize validates the configuration, creates the cache directory and
// opens L1/L2. Calling it on an initialized Layer is a no-op.
func (c *Layer[V]) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.opt.Config.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(c.opt.CacheDir, 0o750); err != nil {
		return fmt.Errorf("%w: cache_dir %q: %v", ErrInvalidConfig, c.opt.CacheDir, err)
	}

	c.l1 = newIndex[V](c.opt.L1MaxEntries, c.l1Policy(), c.onEvict)
	c.l2 = newDiskStore[V](c.opt.DiskPath(), c.opt.L2TTL, c.log)
	c.initialized = true

	if c.opt.RefreshInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go c.refreshLoop(ctx, c.opt.RefreshInterval)
	}

	c.log.WithFields(logrus.Fields{
		"l1_max_entries": c.opt.L1MaxEntries,
		"l2_path":        c.opt.DiskPath(),
	}).Debug("cache: layer initialized")
	return nil
}

// Get cascades L1 -> L2 -> L3. A hit below L1 is promoted upward as a
// fresh entry. Lower-tier failures degrade to a miss.
func (c *Layer[V]) Get(key string) (V, bool) {
	var zero V
	now := c.nowMs()

	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return zero, false
	}
	if e, ok := c.l1.Get(key, now); ok {
		c.mu.Unlock()
		c.stats.l1Hits.Add(1)
		c.opt.Metrics.Hit(TierL1)
		return e.Value, true
	}
	c.stats.l1Misses.Add(1)
	c.opt.Metrics.Miss(TierL1)

	if e, ok := c.l2.Get(key, now); ok {
		layers := Presence{L1: true, L2: true, L3: e.Meta.Layers.L3}
		c.l1.Set(key, newEntry(key, e.Value, now, c.opt.l1TTL(), layers))
		c.opt.Metrics.Size(c.l1.Len())
		c.mu.Unlock()

		c.stats.l2Hits.Add(1)
		c.stats.promotions.Add(1)
		c.opt.Metrics.Hit(TierL2)
		c.opt.Metrics.Promote(TierL2)
		return e.Value, true
	}
	c.stats.l2Misses.Add(1)
	c.opt.Metrics.Miss(TierL2)
	c.mu.Unlock()

	if !c.l3.IsAvailable() {
		return zero, false
	}

	v, err, _ := c.sf.Do(context.Background(), key, func() (V, error) {
		gen := c.beginRemoteRead(key)
		v, ok := c.l3.Get(c.opt.Namespace, key)
		return c.promoteRemote(key, v, ok, gen)
	})
	if err != nil {
		c.stats.l3Misses.Add(1)
		c.opt.Metrics.Miss(TierL3)
		return zero, false
	}
	c.stats.l3Hits.Add(1)
	c.opt.Metrics.Hit(TierL3)
	return v, true
}

// promoteRemote copies an L3 value into L2 and L1 and returns the value to
// hand out. A key written to L1 while the remote was consulted wins; a read
// overtaken by Set, Invalidate or Clear is dropped and reported as a miss.
func (c *Layer[V]) promoteRemote(key string, v V, found bool, gen uint64) (V, error) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.settleRemoteRead(key, gen)
	if !found {
		return zero, errRemoteMiss
	}
	if !c.initialized {
		return v, nil
	}
	if cur, ok := c.l1.Peek(key); ok {
		return cur.Value, nil
	}
	if !current {
		return zero, errRemoteMiss
	}

	now := c.nowMs()
	layers := Presence{L1: true, L2: true, L3: true}
	c.l1.Set(key, newEntry(key, v, now, c.opt.l1TTL(), layers))
	if err := c.l2.Set(key, newEntry(key, v, now, c.opt.L2TTL, layers)); err != nil {
		c.warn(TierL2, "promote", key, err)
	}
	c.opt.Metrics.Size(c.l1.Len())
	c.stats.promotions.Add(1)
	c.opt.Metrics.Promote(TierL3)
	return v, nil
}

// Set writes through L1, then L2, then L3. L2 and L3 failures are logged
// and swallowed: the current session keeps the value in L1.
func (c *Layer[V]) Set(key string, v V) error {
	remote := c.l3.IsAvailable()
	now := c.nowMs()
	layers := Presence{L1: true, L2: true, L3: remote}

	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.l1.Set(key, newEntry(key, v, now, c.opt.l1TTL(), layers))
	if err := c.l2.Set(key, newEntry(key, v, now, c.opt.L2TTL, layers)); err != nil {
		c.warn(TierL2, "set", key, err)
	}
	c.opt.Metrics.Size(c.l1.Len())
	c.touchLocked(key)
	c.mu.Unlock()

	// A flight started before this write must not be joined afterwards.
	c.sf.Forget(key)

	if remote {
		if err := c.l3.Set(c.opt.Namespace, key, v); err != nil {
			c.warn(TierL3, "set", key, err)
		}
		c.touch(key)
	}
	return nil
}

// Invalidate removes key from L1, L2 and (best effort) L3.
func (c *Layer[V]) Invalidate(key string) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.l1.Remove(key)
	if err := c.l2.Remove(key); err != nil {
		c.warn(TierL2, "delete", key, err)
	}
	c.opt.Metrics.Size(c.l1.Len())
	c.touchLocked(key)
	c.mu.Unlock()

	c.sf.Forget(key)

	if c.l3.IsAvailable() {
		if err := c.l3.Delete(c.opt.Namespace, key); err != nil {
			c.warn(TierL3, "delete", key, err)
		}
		c.touch(key)
	}
	return nil
}

// Clear empties L1, overwrites the namespace's L2 file and resets the
// counters. L3 is shared and deliberately left alone. An L2 write failure
// is returned because the caller explicitly asked to drop persisted state.
func (c *Layer[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ErrNotInitialized
	}
	c.l1.Clear()
	c.touchAllLocked()
	c.stats.reset()
	c.opt.Metrics.Size(0)
	if err := c.l2.Clear(); err != nil {
		c.opt.Metrics.Error(TierL2, "clear")
		return fmt.Errorf("cache: clear l2: %w", err)
	}
	return nil
}

// GetStats returns a point-in-time copy of the counters.
func (c *Layer[V]) GetStats() Stats { return c.stats.snapshot() }

// Len returns the number of entries resident in L1.
func (c *Layer[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return 0
	}
	return c.l1.Len()
}

// Destroy stops the refresher and drops L1/L2 handles. Calling it twice,
// or before Initialize, is a no-op. The Layer may be initialized again.
func (c *Layer[V]) Destroy() {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = false
	c.touchAllLocked()
	c.l1 = nil
	c.l2 = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.log.Debug("cache: layer destroyed")
}

// ---- helpers ----

// beginRemoteRead records the write generation of key before an L3 read.
// Every call must be paired with settleRemoteRead.
func (c *Layer[V]) beginRemoteRead(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.reads[key]
	if r == nil {
		r = &remoteRead{}
		c.reads[key] = r
	}
	r.refs++
	return r.gen
}

// settleRemoteRead ends a read started at gen and reports whether no write
// touched key since. Caller holds mu.
func (c *Layer[V]) settleRemoteRead(key string, gen uint64) bool {
	r := c.reads[key]
	if r == nil {
		return false
	}
	r.refs--
	if r.refs <= 0 {
		delete(c.reads, key)
	}
	return r.gen == gen
}

// touchLocked invalidates L3 reads of key that are in flight. Caller holds mu.
func (c *Layer[V]) touchLocked(key string) {
	if r := c.reads[key]; r != nil {
		r.gen++
	}
}

// touch is touchLocked for callers that do not hold mu. It runs once the
// L3 write has landed, so reads that started in between are dropped too.
func (c *Layer[V]) touch(key string) {
	c.mu.Lock()
	c.touchLocked(key)
	c.mu.Unlock()
}

// touchAllLocked invalidates every L3 read in flight. Caller holds mu.
func (c *Layer[V]) touchAllLocked() {
	for _, r := range c.reads {
		r.gen++
	}
}

func (c *Layer[V]) l1Policy() policy.Policy {
	if c.opt.L1Policy == "2q" {
		return twoq.New(max(1, c.opt.L1MaxEntries/4), max(1, c.opt.L1MaxEntries/2))
	}
	return lru.New()
}

// onEvict runs under mu for every L1 eviction.
func (c *Layer[V]) onEvict(key string, e Entry[V], reason EvictReason) {
	c.stats.evictions.Add(1)
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(key, e.Value, reason)
	}
}

func (c *Layer[V]) warn(t Tier, op, key string, err error) {
	c.opt.Metrics.Error(t, op)
	c.log.WithFields(logrus.Fields{
		"tier": t.String(),
		"op":   op,
		"key":  key,
	}).WithError(err).Warn("cache: lower tier failure ignored")
}

func (c *Layer[V]) nowMs() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano() / int64(time.Millisecond)
	}
	return time.Now().UnixMilli()
}
