package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// diskStore is the L2 tier: one JSON object per namespace, mapping key to a
// serialised Entry. Every operation is a whole-file read-modify-write, so
// it is meant for modest write rates.
//
// The file is owned by exactly one Layer per namespace; two processes (or
// two Layers) pointed at the same file interleave undefinedly.
type diskStore[V any] struct {
	mu   sync.Mutex // serialises read-modify-write of path
	path string
	ttl  time.Duration
	log  logrus.FieldLogger
}

func newDiskStore[V any](path string, ttl time.Duration, log logrus.FieldLogger) *diskStore[V] {
	return &diskStore[V]{path: path, ttl: ttl, log: log}
}

// Load reads the namespace file. A missing or malformed file yields an
// empty map: corruption is a cache miss, never an error.
func (d *diskStore[V]) Load() map[string]Entry[V] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked()
}

// Get returns the entry for key. Entries older than the disk TTL are
// removed from the file and reported as missing.
func (d *diskStore[V]) Get(key string, nowMs int64) (Entry[V], bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	items := d.loadLocked()
	e, ok := items[key]
	if !ok {
		return Entry[V]{}, false
	}
	if e.expiredAfter(nowMs, d.ttl) {
		delete(items, key)
		if err := d.saveLocked(items); err != nil {
			d.log.WithFields(logrus.Fields{"path": d.path, "key": key}).
				WithError(err).Warn("cache: persist after l2 expiry failed")
		}
		return Entry[V]{}, false
	}
	return e, true
}

// Set upserts key and rewrites the file.
func (d *diskStore[V]) Set(key string, e Entry[V]) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	items := d.loadLocked()
	items[key] = e
	return d.saveLocked(items)
}

// Remove deletes key and rewrites the file. Removing a missing key does
// not touch the file.
func (d *diskStore[V]) Remove(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	items := d.loadLocked()
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return d.saveLocked(items)
}

// Clear overwrites the namespace file with an empty object.
func (d *diskStore[V]) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveLocked(map[string]Entry[V]{})
}

// -------------------- internals (mu held) --------------------

func (d *diskStore[V]) loadLocked() map[string]Entry[V] {
	items := make(map[string]Entry[V])

	data, err := os.ReadFile(d.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.log.WithField("path", d.path).WithError(err).Warn("cache: l2 read failed, treating as empty")
		}
		return items
	}
	if len(data) == 0 {
		return items
	}
	if err := json.Unmarshal(data, &items); err != nil {
		d.log.WithField("path", d.path).WithError(err).Warn("cache: l2 file malformed, treating as empty")
		return make(map[string]Entry[V])
	}
	if items == nil {
		// "null" decodes into a nil map.
		items = make(map[string]Entry[V])
	}
	return items
}

// saveLocked writes items to a temp file and renames it over the target.
func (d *diskStore[V]) saveLocked(items map[string]Entry[V]) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cache: encode l2 file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create l2 temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath) // Ignore cleanup error
		return fmt.Errorf("cache: write l2 temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: close l2 temp file: %w", err)
	}

	// Atomic replace
	if err := os.Rename(tmpPath, d.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("cache: replace l2 file: %w", err)
	}
	return nil
}
