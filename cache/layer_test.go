package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// maxEntries=2; Set a, b, c; a has left L1 but is still on disk.
func TestLayer_EvictedKeyComesBackFromDisk(t *testing.T) {
	t.Parallel()

	c := newTestLayer(t, func(o *Options[string]) { o.L1MaxEntries = 2 })
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(k, "v-"+k))
	}
	assert.Equal(t, 2, c.Len())

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "v-a", v)

	s := c.GetStats()
	assert.Equal(t, uint64(1), s.L1Misses)
	assert.Equal(t, uint64(1), s.L2Hits)
	assert.Equal(t, uint64(1), s.Promotions)
	assert.Equal(t, uint64(2), s.Evictions, "c evicted a, then promoting a evicted b")

	v, ok = c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "v-a", v)
	assert.Equal(t, uint64(1), c.GetStats().L1Hits, "a was promoted into L1")
}

func TestLayer_RemoteHitIsPromoted(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	remote.put("test", "k", "from-l3")
	m := newRecMetrics()
	c := newTestLayer(t, func(o *Options[string]) {
		o.Remote = remote
		o.Metrics = m
	})

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "from-l3", v)

	v, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "from-l3", v)

	gets, _, _ := remote.calls()
	assert.Equal(t, 1, gets, "second read must be served by L1")

	s := c.GetStats()
	assert.Equal(t, uint64(1), s.L3Hits)
	assert.Equal(t, uint64(1), s.L1Hits)
	assert.Equal(t, uint64(1), s.Promotions)
	assert.Equal(t, 1, m.promotes[TierL3])

	items := diskItems(c)
	require.Contains(t, items, "k")
	assert.Equal(t, "from-l3", items["k"].Value)
	assert.Equal(t, Presence{L1: true, L2: true, L3: true}, items["k"].Meta.Layers)
}

func TestLayer_RemoteMiss(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	_, ok := c.Get("nope")
	assert.False(t, ok)

	s := c.GetStats()
	assert.Equal(t, uint64(1), s.L1Misses)
	assert.Equal(t, uint64(1), s.L2Misses)
	assert.Equal(t, uint64(1), s.L3Misses)
	assert.Zero(t, s.Hits())
	assert.Zero(t, c.Len())
}

func TestLayer_WriteThroughIsIdempotent(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	require.NoError(t, c.Set("k", "v"))
	require.NoError(t, c.Set("k", "v"))

	assert.Equal(t, 1, c.Len())
	assert.Len(t, diskItems(c), 1)
	assert.True(t, remote.has("test", "k"))

	e, ok := peekL1(c, "k")
	require.True(t, ok)
	assert.Equal(t, "v", e.Value)
	assert.Equal(t, Presence{L1: true, L2: true, L3: true}, e.Meta.Layers)
}

func TestLayer_NoRemoteMeansNoRemoteCalls(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(false)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	require.NoError(t, c.Set("k", "v"))
	_, ok := c.Get("missing")
	assert.False(t, ok)
	require.NoError(t, c.Invalidate("k"))

	gets, sets, deletes := remote.calls()
	assert.Zero(t, gets)
	assert.Zero(t, sets)
	assert.Zero(t, deletes)
	assert.Zero(t, c.GetStats().L3Misses, "an absent L3 is not a miss")

	items := diskItems(c)
	assert.Empty(t, items)
}

func TestLayer_DefaultRemoteIsUnavailable(t *testing.T) {
	t.Parallel()

	c := newTestLayer(t, nil)
	require.NoError(t, c.Set("k", "v"))
	e, ok := peekL1(c, "k")
	require.True(t, ok)
	assert.False(t, e.Meta.Layers.L3)
}

func TestLayer_SurvivesRestart(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	first := New(Options[string]{Config: cfg, Logger: quietLogger()})
	require.NoError(t, first.Initialize())
	require.NoError(t, first.Set("session", "state-1"))
	first.Destroy()

	second := New(Options[string]{Config: cfg, Logger: quietLogger()})
	require.NoError(t, second.Initialize())
	t.Cleanup(second.Destroy)

	v, ok := second.Get("session")
	require.True(t, ok)
	assert.Equal(t, "state-1", v)
	assert.Equal(t, uint64(1), second.GetStats().L2Hits)
}

func TestLayer_ReinitializeAfterDestroy(t *testing.T) {
	t.Parallel()

	c := newTestLayer(t, nil)
	require.NoError(t, c.Set("k", "v"))
	c.Destroy()
	c.Destroy()

	require.NoError(t, c.Initialize())
	require.NoError(t, c.Initialize())
	assert.Zero(t, c.Len(), "L1 starts empty")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestLayer_NotInitialized(t *testing.T) {
	t.Parallel()

	c := New(Options[string]{Config: testConfig(t), Logger: quietLogger()})

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.ErrorIs(t, c.Set("k", "v"), ErrNotInitialized)
	assert.ErrorIs(t, c.Invalidate("k"), ErrNotInitialized)
	assert.ErrorIs(t, c.Clear(), ErrNotInitialized)
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNotInitialized)
	assert.Zero(t, c.Len())
	assert.Equal(t, Stats{}, c.GetStats())
	c.Destroy()

	_, err := os.Stat(c.opt.DiskPath())
	assert.True(t, os.IsNotExist(err), "no I/O before Initialize")
}

func TestLayer_InitializeRejectsBadConfig(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "plain-file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.L1MaxEntries = 0 }},
		{"bad policy", func(c *Config) { c.L1Policy = "random" }},
		{"dir is a file", func(c *Config) { c.CacheDir = filepath.Join(file, "sub") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mut(&cfg)
			c := New(Options[string]{Config: cfg, Logger: quietLogger()})
			assert.ErrorIs(t, c.Initialize(), ErrInvalidConfig)
			assert.ErrorIs(t, c.Set("k", "v"), ErrNotInitialized)
		})
	}
}

func TestLayer_InitializeCreatesCacheDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.CacheDir = filepath.Join(cfg.CacheDir, "nested", "dir")
	c := New(Options[string]{Config: cfg, Logger: quietLogger()})
	require.NoError(t, c.Initialize())
	t.Cleanup(c.Destroy)

	require.NoError(t, c.Set("k", "v"))
	_, err := os.Stat(filepath.Join(cfg.CacheDir, "test_cache.json"))
	assert.NoError(t, err)
}

func TestLayer_RemoteSetFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	remote.setErr = errRemoteDown
	m := newRecMetrics()
	c := newTestLayer(t, func(o *Options[string]) {
		o.Remote = remote
		o.Metrics = m
	})

	require.NoError(t, c.Set("k", "v"))
	assert.Equal(t, 1, m.errCount(TierL3, "set"))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Contains(t, diskItems(c), "k")
}

func TestLayer_DiskWriteFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.CacheDir = filepath.Join(cfg.CacheDir, "cache")
	m := newRecMetrics()
	c := New(Options[string]{Config: cfg, Logger: quietLogger(), Metrics: m})
	require.NoError(t, c.Initialize())
	t.Cleanup(c.Destroy)

	// Replace the directory with a regular file so temp-file creation fails
	// regardless of the uid running the test.
	require.NoError(t, os.RemoveAll(cfg.CacheDir))
	require.NoError(t, os.WriteFile(cfg.CacheDir, []byte("x"), 0o600))

	require.NoError(t, c.Set("k", "v"))
	assert.Equal(t, 1, m.errCount(TierL2, "set"))

	v, ok := c.Get("k")
	require.True(t, ok, "the session keeps the value in L1")
	assert.Equal(t, "v", v)

	assert.Error(t, c.Clear(), "clear reports a failed L2 reset")
	assert.Equal(t, 1, m.errCount(TierL2, "clear"))
}

func TestLayer_MalformedDiskFileSelfHeals(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.DiskPath(), []byte(`{"k": [broken`), 0o600))

	c := New(Options[string]{Config: cfg, Logger: quietLogger()})
	require.NoError(t, c.Initialize())
	t.Cleanup(c.Destroy)

	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", "v"))
	items := diskItems(c)
	require.Contains(t, items, "k")
	assert.Equal(t, "v", items["k"].Value)
}

func TestLayer_Invalidate(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	require.NoError(t, c.Set("k", "v"))
	require.NoError(t, c.Set("other", "w"))
	require.NoError(t, c.Invalidate("k"))
	require.NoError(t, c.Invalidate("never-set"))

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.False(t, remote.has("test", "k"))
	assert.NotContains(t, diskItems(c), "k")
	assert.Contains(t, diskItems(c), "other")
}

func TestLayer_InvalidateRemoteFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	remote.deleteErr = errRemoteDown
	m := newRecMetrics()
	c := newTestLayer(t, func(o *Options[string]) {
		o.Remote = remote
		o.Metrics = m
	})

	require.NoError(t, c.Set("k", "v"))
	require.NoError(t, c.Invalidate("k"))
	assert.Equal(t, 1, m.errCount(TierL3, "delete"))

	_, ok := peekL1(c, "k")
	assert.False(t, ok)
	assert.NotContains(t, diskItems(c), "k")
}

func TestLayer_ClearKeepsRemote(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))
	_, _ = c.Get("a")
	_, _ = c.Get("zzz")

	require.NoError(t, c.Clear())
	assert.Zero(t, c.Len())
	assert.Equal(t, Stats{}, c.GetStats())
	assert.Empty(t, diskItems(c))

	raw, err := os.ReadFile(c.opt.DiskPath())
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	assert.True(t, remote.has("test", "a"), "L3 is shared and left alone")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, uint64(1), c.GetStats().L3Hits)
}

func TestLayer_TTLExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	m := newRecMetrics()
	c := newTestLayer(t, func(o *Options[string]) {
		o.L2TTL = time.Hour
		o.Clock = clock
		o.Metrics = m
	})

	require.NoError(t, c.Set("k", "v"))
	clock.add(30 * time.Minute)
	_, ok := c.Get("k")
	require.True(t, ok)

	clock.add(2 * time.Hour)
	_, ok = c.Get("k")
	assert.False(t, ok, "expired in both L1 and L2")

	assert.Equal(t, 1, m.evicts[EvictTTL])
	assert.Equal(t, uint64(1), c.GetStats().Evictions)
	assert.NotContains(t, diskItems(c), "k", "expired L2 entry is purged from the file")
}

func TestLayer_ShortL1TTLFallsBackToDisk(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newTestLayer(t, func(o *Options[string]) {
		o.L1TTL = time.Minute
		o.L2TTL = time.Hour
		o.Clock = clock
	})

	require.NoError(t, c.Set("k", "v"))
	clock.add(2 * time.Minute)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	s := c.GetStats()
	assert.Equal(t, uint64(1), s.L2Hits)
	assert.Equal(t, uint64(1), s.Promotions)

	_, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, uint64(1), c.GetStats().L1Hits, "promoted entry is fresh again")
}

func TestLayer_OnEvictCallback(t *testing.T) {
	t.Parallel()

	type ev struct {
		key, val string
		reason   EvictReason
	}
	var got []ev
	m := newRecMetrics()
	c := newTestLayer(t, func(o *Options[string]) {
		o.L1MaxEntries = 2
		o.Metrics = m
		o.OnEvict = func(k, v string, r EvictReason) { got = append(got, ev{k, v, r}) }
	})

	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))
	require.NoError(t, c.Set("c", "3"))

	require.Len(t, got, 1)
	assert.Equal(t, ev{"a", "1", EvictCapacity}, got[0])
	assert.Equal(t, 1, m.evicts[EvictCapacity])
	assert.Equal(t, 2, m.size)
}

func TestLayer_TwoQPolicy(t *testing.T) {
	t.Parallel()

	c := newTestLayer(t, func(o *Options[string]) {
		o.L1MaxEntries = 8
		o.L1Policy = "2q"
	})
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, c.Set(k, k))
	}
	assert.LessOrEqual(t, c.Len(), 8)

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		v, ok := c.Get(k)
		require.True(t, ok, "every key is still reachable through L2")
		assert.Equal(t, k, v)
	}
}

func TestLayer_HitRatio(t *testing.T) {
	t.Parallel()

	c := newTestLayer(t, nil)
	assert.Zero(t, c.GetStats().HitRatio())

	require.NoError(t, c.Set("k", "v"))
	_, _ = c.Get("k")
	_, _ = c.Get("k")
	_, _ = c.Get("x")
	_, _ = c.Get("y")

	s := c.GetStats()
	assert.Equal(t, uint64(2), s.Hits())
	assert.InDelta(t, 0.5, s.HitRatio(), 1e-9)
}

func TestLayer_Refresh(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	require.NoError(t, c.Set("a", "a1"))
	require.NoError(t, c.Set("b", "b1"))
	_, _ = c.Get("a")
	_, _ = c.Get("a")

	before, ok := peekL1(c, "a")
	require.True(t, ok)
	c.mu.Lock()
	order := c.l1.Keys()
	c.mu.Unlock()

	remote.put("test", "a", "a2")
	remote.put("test", "stranger", "x")
	require.NoError(t, c.Refresh(context.Background()))

	after, ok := peekL1(c, "a")
	require.True(t, ok)
	assert.Equal(t, "a2", after.Value)
	assert.Equal(t, before.Meta.CreatedAt, after.Meta.CreatedAt)
	assert.Equal(t, before.Meta.AccessCount, after.Meta.AccessCount)
	assert.Equal(t, "a2", diskItems(c)["a"].Value)

	c.mu.Lock()
	assert.Equal(t, order, c.l1.Keys(), "refresh does not reorder L1")
	c.mu.Unlock()

	_, ok = peekL1(c, "stranger")
	assert.False(t, ok, "refresh only touches resident keys")
	assert.Equal(t, 2, c.Len())
}

func TestLayer_RefreshDoesNotResurrect(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	c.applyRefresh("gone", "v", true, c.beginRemoteRead("gone"))
	_, ok := peekL1(c, "gone")
	assert.False(t, ok)
	assert.NotContains(t, diskItems(c), "gone")
	assert.Zero(t, inflightReads(c))
}

func TestLayer_RefreshCancelled(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })
	require.NoError(t, c.Set("a", "1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Refresh(ctx), context.Canceled)
}

func TestLayer_BackgroundRefresh(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) {
		o.Remote = remote
		o.RefreshInterval = 5 * time.Millisecond
	})

	require.NoError(t, c.Set("k", "old"))
	remote.put("test", "k", "new")

	require.Eventually(t, func() bool {
		e, ok := peekL1(c, "k")
		return ok && e.Value == "new"
	}, 2*time.Second, 5*time.Millisecond)

	c.Destroy()
	_, ok := peekL1(c, "k")
	assert.False(t, ok)
}

func TestLayer_RemoteLookupsAreCoalesced(t *testing.T) {
	t.Parallel()

	const n = 8
	remote := newFakeRemote(true)
	remote.put("test", "hot", "value")
	remote.gate = make(chan struct{})
	m := newRecMetrics()
	c := newTestLayer(t, func(o *Options[string]) {
		o.Remote = remote
		o.Metrics = m
	})

	var (
		g   errgroup.Group
		mu  sync.Mutex
		got []string
	)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, ok := c.Get("hot")
			if ok {
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
			}
			return nil
		})
	}

	require.Eventually(t, func() bool { return m.missCount(TierL2) == n }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(remote.gate)
	require.NoError(t, g.Wait())

	gets, _, _ := remote.calls()
	assert.Equal(t, 1, gets, "concurrent misses share one remote lookup")
	assert.Len(t, got, n)
	for _, v := range got {
		assert.Equal(t, "value", v)
	}
	assert.Equal(t, uint64(n), c.GetStats().L3Hits)
	assert.Equal(t, uint64(1), c.GetStats().Promotions)
}

func TestLayer_SetAfterRemoteFlightWins(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	remote.put("test", "k", "stale")
	remote.gate = make(chan struct{})
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	var (
		g     errgroup.Group
		first string
	)
	g.Go(func() error {
		first, _ = c.Get("k")
		return nil
	})
	require.Eventually(t, func() bool {
		gets, _, _ := remote.calls()
		return gets == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Set("k", "fresh"))
	close(remote.gate)
	require.NoError(t, g.Wait())
	assert.Equal(t, "fresh", first)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "fresh", v, "a stale remote read must not overwrite a newer write")
	assert.Equal(t, "fresh", diskItems(c)["k"].Value)
}

// startGatedGet runs c.Get(key) in the background and waits until the
// remote read has started and is parked on the gate.
func startGatedGet(t *testing.T, c *Layer[string], remote *fakeRemote, key string) (wait func() (string, bool)) {
	t.Helper()

	var (
		g   errgroup.Group
		v   string
		hit bool
	)
	g.Go(func() error {
		v, hit = c.Get(key)
		return nil
	})
	require.Eventually(t, func() bool {
		gets, _, _ := remote.calls()
		return gets == 1
	}, time.Second, time.Millisecond)
	return func() (string, bool) {
		require.NoError(t, g.Wait())
		return v, hit
	}
}

func TestLayer_InvalidateDuringRemoteFlight(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	remote.put("test", "k", "stale")
	remote.gate = make(chan struct{})
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	wait := startGatedGet(t, c, remote, "k")
	require.NoError(t, c.Invalidate("k"))
	close(remote.gate)

	_, hit := wait()
	assert.False(t, hit, "a read overtaken by Invalidate is a miss")
	assert.False(t, remote.has("test", "k"))
	_, ok := peekL1(c, "k")
	assert.False(t, ok, "invalidated key must not be promoted back into L1")
	assert.NotContains(t, diskItems(c), "k", "invalidated key must not be written back to disk")

	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, inflightReads(c))
}

func TestLayer_ClearDuringRemoteFlight(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	remote.put("test", "k", "v")
	remote.gate = make(chan struct{})
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })

	wait := startGatedGet(t, c, remote, "k")
	require.NoError(t, c.Clear())
	close(remote.gate)

	_, hit := wait()
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, diskItems(c))
	assert.Zero(t, c.GetStats().Promotions)

	// L3 is untouched by Clear, so a new read promotes again.
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestLayer_SetDuringRefreshWins(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	c := newTestLayer(t, func(o *Options[string]) { o.Remote = remote })
	require.NoError(t, c.Set("k", "old"))

	remote.mu.Lock()
	remote.gate = make(chan struct{})
	remote.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return c.Refresh(context.Background()) })
	require.Eventually(t, func() bool {
		gets, _, _ := remote.calls()
		return gets == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Set("k", "new"))
	close(remote.gate)
	require.NoError(t, g.Wait())

	e, ok := peekL1(c, "k")
	require.True(t, ok)
	assert.Equal(t, "new", e.Value, "refresh must not undo a newer write")
	assert.Equal(t, "new", diskItems(c)["k"].Value)
	assert.Zero(t, inflightReads(c))
}

func TestLayer_RemoteNeverCalledUnderLock(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(true)
	remote.put("test", "r", "from-remote")
	opt := Options[string]{Config: testConfig(t), Logger: quietLogger(), Remote: remote}
	opt.L1MaxEntries = 1
	c := New(opt)
	remote.lockHeld = layerLockHeld(c)

	require.NoError(t, c.Initialize())
	t.Cleanup(c.Destroy)

	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))
	_, _ = c.Get("a")
	_, _ = c.Get("r")
	_, _ = c.Get("missing")
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.Invalidate("b"))
	require.NoError(t, c.Clear())

	availChecks, underLock := remote.callsUnderLock()
	assert.Positive(t, availChecks)
	assert.Zero(t, underLock, "remote tier called while the layer lock was held")
}
