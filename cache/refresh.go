package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// Refresh re-reads every key resident in L1 from L3 and rewrites it in L2
// and L1 without touching recency order. A key that left L1 or was written
// while the remote was consulted keeps its current state. Keys L3 does not
// know are kept.
func (c *Layer[V]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	keys := c.l1.Keys()
	c.mu.Unlock()

	if len(keys) == 0 || !c.l3.IsAvailable() {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opt.RefreshConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gen := c.beginRemoteRead(key)
			v, ok := c.l3.Get(c.opt.Namespace, key)
			c.applyRefresh(key, v, ok, gen)
			return nil
		})
	}
	return g.Wait()
}

// applyRefresh swaps in a value fetched from L3, keeping the L1 entry's
// creation time and access bookkeeping. Nothing is applied when L3 did not
// know key or a write touched it after the read at gen started.
func (c *Layer[V]) applyRefresh(key string, v V, found bool, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current := c.settleRemoteRead(key, gen); !found || !current || !c.initialized {
		return
	}
	cur, ok := c.l1.Peek(key)
	if !ok {
		return
	}

	now := c.nowMs()
	layers := Presence{L1: true, L2: true, L3: true}
	e := newEntry(key, v, now, c.opt.l1TTL(), layers)
	e.Meta.CreatedAt = cur.Meta.CreatedAt
	e.Meta.AccessCount = cur.Meta.AccessCount
	e.Meta.LastAccessedAt = cur.Meta.LastAccessedAt
	c.l1.Replace(key, e)

	if err := c.l2.Set(key, newEntry(key, v, now, c.opt.L2TTL, layers)); err != nil {
		c.warn(TierL2, "refresh", key, err)
	}
}

// refreshLoop runs Refresh every interval until ctx is cancelled.
func (c *Layer[V]) refreshLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := c.Refresh(ctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrNotInitialized) {
				c.log.WithError(err).Warn("cache: background refresh failed")
			}
		}
	}
}
