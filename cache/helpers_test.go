package cache

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  int64
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano()} }

func (f *fakeClock) NowUnixNano() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) add(d time.Duration) {
	f.mu.Lock()
	f.t += int64(d)
	f.mu.Unlock()
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeRemote is an in-memory RemoteTier that records every call.
type fakeRemote struct {
	mu        sync.Mutex
	available bool
	data      map[string]string
	delay     time.Duration
	gate      chan struct{}
	setErr    error
	deleteErr error

	// lockHeld, when set, reports whether the caller holds the layer lock.
	lockHeld func() bool

	gets, sets, deletes, availChecks, underLock int
}

func newFakeRemote(available bool) *fakeRemote {
	return &fakeRemote{available: available, data: make(map[string]string)}
}

func remoteKey(ns, key string) string { return ns + "\x00" + key }

// checkLock counts a call made while the layer lock is held. Caller holds r.mu.
func (r *fakeRemote) checkLock() {
	if r.lockHeld != nil && r.lockHeld() {
		r.underLock++
	}
}

func (r *fakeRemote) IsAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.availChecks++
	r.checkLock()
	return r.available
}

func (r *fakeRemote) Get(ns, key string) (string, bool) {
	r.mu.Lock()
	r.gets++
	r.checkLock()
	delay, gate := r.delay, r.gate
	v, ok := r.data[remoteKey(ns, key)]
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return v, ok
}

func (r *fakeRemote) Set(ns, key, v string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets++
	r.checkLock()
	if r.setErr != nil {
		return r.setErr
	}
	r.data[remoteKey(ns, key)] = v
	return nil
}

func (r *fakeRemote) Delete(ns, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	r.checkLock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.data, remoteKey(ns, key))
	return nil
}

func (r *fakeRemote) put(ns, key, v string) {
	r.mu.Lock()
	r.data[remoteKey(ns, key)] = v
	r.mu.Unlock()
}

func (r *fakeRemote) has(ns, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[remoteKey(ns, key)]
	return ok
}

func (r *fakeRemote) callsUnderLock() (availChecks, underLock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availChecks, r.underLock
}

func (r *fakeRemote) calls() (gets, sets, deletes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets, r.sets, r.deletes
}

var errRemoteDown = errors.New("remote down")

// recMetrics records Metrics signals.
type recMetrics struct {
	mu       sync.Mutex
	hits     map[Tier]int
	misses   map[Tier]int
	evicts   map[EvictReason]int
	promotes map[Tier]int
	errs     map[string]int
	size     int
}

func newRecMetrics() *recMetrics {
	return &recMetrics{
		hits:     map[Tier]int{},
		misses:   map[Tier]int{},
		evicts:   map[EvictReason]int{},
		promotes: map[Tier]int{},
		errs:     map[string]int{},
	}
}

func (m *recMetrics) Hit(t Tier)              { m.mu.Lock(); m.hits[t]++; m.mu.Unlock() }
func (m *recMetrics) Miss(t Tier)             { m.mu.Lock(); m.misses[t]++; m.mu.Unlock() }
func (m *recMetrics) Evict(r EvictReason)     { m.mu.Lock(); m.evicts[r]++; m.mu.Unlock() }
func (m *recMetrics) Promote(t Tier)          { m.mu.Lock(); m.promotes[t]++; m.mu.Unlock() }
func (m *recMetrics) Error(t Tier, op string) { m.mu.Lock(); m.errs[t.String()+"/"+op]++; m.mu.Unlock() }
func (m *recMetrics) Size(entries int)        { m.mu.Lock(); m.size = entries; m.mu.Unlock() }

func (m *recMetrics) errCount(t Tier, op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[t.String()+"/"+op]
}

// testConfig returns a valid config rooted in a fresh temp dir.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Namespace = "test"
	cfg.CacheDir = t.TempDir()
	return cfg
}

// newTestLayer builds and initializes a Layer[string]; mut may adjust options.
func newTestLayer(t *testing.T, mut func(*Options[string])) *Layer[string] {
	t.Helper()
	opt := Options[string]{Config: testConfig(t), Logger: quietLogger()}
	if mut != nil {
		mut(&opt)
	}
	c := New(opt)
	require.NoError(t, c.Initialize())
	t.Cleanup(c.Destroy)
	return c
}

func (m *recMetrics) missCount(t Tier) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.misses[t]
}

// peekL1 reads an L1 entry under the layer lock without touching recency.
func peekL1(c *Layer[string], key string) (Entry[string], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return Entry[string]{}, false
	}
	return c.l1.Peek(key)
}

// layerLockHeld reports whether someone holds c's lock. Only meaningful
// when a single goroutine drives c.
func layerLockHeld(c *Layer[string]) func() bool {
	return func() bool {
		if c.mu.TryLock() {
			c.mu.Unlock()
			return false
		}
		return true
	}
}

// inflightReads returns how many keys have an L3 read stamped.
func inflightReads(c *Layer[string]) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reads)
}

// diskItems reads the namespace file the way a fresh process would.
func diskItems(c *Layer[string]) map[string]Entry[string] {
	return newDiskStore[string](c.opt.DiskPath(), c.opt.L2TTL, quietLogger()).Load()
}
