// Package sqlite implements a cache.RemoteTier on top of a SQLite database.
//
// Values are stored JSON-encoded in a single table keyed by (namespace, key).
// The database file may be shared by many namespaces and processes; SQLite's
// WAL mode and busy timeout serialise writers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/IvanBrykalov/tiercache/cache"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DefaultTimeout bounds every statement issued by the store.
const DefaultTimeout = 5 * time.Second

// Config configures a Store.
type Config struct {
	// Path of the database file. ":memory:" gives a private in-memory database.
	Path string
	// TTL is applied at read time; older rows are deleted and reported as a miss.
	// Zero means cache.DefaultL3TTL.
	TTL time.Duration
	// Timeout per statement; zero means DefaultTimeout.
	Timeout time.Duration
	// Logger; nil means logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// Store is a SQLite-backed remote tier. Safe for concurrent use.
type Store[V any] struct {
	db  *sql.DB
	cfg Config
	log logrus.FieldLogger
	now func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database at cfg.Path and prepares the schema.
func Open[V any](cfg Config) (*Store[V], error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: empty path")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultL3TTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// One connection: keeps ":memory:" a single database and avoids
	// SQLITE_BUSY between our own writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &Store[V]{
		db:  db,
		cfg: cfg,
		log: cfg.Logger.WithField("tier", "l3-sqlite"),
		now: time.Now,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

func (s *Store[V]) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			namespace  TEXT    NOT NULL,
			key        TEXT    NOT NULL,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		);
		CREATE INDEX IF NOT EXISTS idx_cache_entries_updated ON cache_entries(updated_at);
	`)
	return err
}

// IsAvailable reports whether the database is open and answers a ping.
func (s *Store[V]) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.db.PingContext(ctx) == nil
}

// Get returns the value stored under (ns, key). Missing, expired and
// undecodable rows are all misses.
func (s *Store[V]) Get(ns, key string) (V, bool) {
	var zero V
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return zero, false
	}

	ctx, cancel := s.ctx()
	defer cancel()

	var (
		raw       string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		ns, key,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false
	}
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("sqlite: get failed")
		return zero, false
	}

	if s.now().UnixMilli()-updatedAt > s.cfg.TTL.Milliseconds() {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE namespace = ? AND key = ? AND updated_at = ?`,
			ns, key, updatedAt,
		); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("sqlite: drop expired row failed")
		}
		return zero, false
	}

	var v V
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("sqlite: undecodable value")
		return zero, false
	}
	return v, true
}

// Set upserts (ns, key) with v.
func (s *Store[V]) Set(ns, key string, v V) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlite: encode %q: %w", key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return sql.ErrConnDone
	}
	ctx, cancel := s.ctx()
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		ns, key, string(data), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set %q: %w", key, err)
	}
	return nil
}

// Delete removes (ns, key). Deleting a missing key is not an error.
func (s *Store[V]) Delete(ns, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return sql.ErrConnDone
	}
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, ns, key,
	); err != nil {
		return fmt.Errorf("sqlite: delete %q: %w", key, err)
	}
	return nil
}

// Purge deletes every row older than the TTL and returns how many went.
func (s *Store[V]) Purge(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, sql.ErrConnDone
	}

	cutoff := s.now().UnixMilli() - s.cfg.TTL.Milliseconds()
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database. Later calls behave as an unavailable tier.
func (s *Store[V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store[V]) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.Timeout)
}

var _ cache.RemoteTier[string] = (*Store[string])(nil)
