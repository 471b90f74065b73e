package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/remote/s3"
	"github.com/IvanBrykalov/tiercache/remote/sqlite"
)

// session is an initialized layer plus whatever must be closed with it.
type session struct {
	cfg     cache.Config
	layer   *cache.Layer[json.RawMessage]
	closers []io.Closer
}

func (s *session) Close() {
	s.layer.Destroy()
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("close remote tier")
		}
	}
}

// loadConfig merges the config file, TIERCACHE_* env and explicit flags.
func (g *globals) loadConfig() (cache.Config, error) {
	cfg, err := cache.LoadConfig(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.namespace != "" {
		cfg.Namespace = g.namespace
	}
	if g.cacheDir != "" {
		cfg.CacheDir = g.cacheDir
	}
	if g.maxEntries > 0 {
		cfg.L1MaxEntries = g.maxEntries
	}
	if g.policy != "" {
		cfg.L1Policy = g.policy
	}
	return cfg, nil
}

// open builds and initializes the layer selected by the global flags.
func (g *globals) open(ctx *cli.Context, metrics cache.Metrics) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	opt := cache.Options[json.RawMessage]{
		Config:  cfg,
		Metrics: metrics,
		Logger:  logrus.StandardLogger(),
	}

	switch g.remote {
	case "", "none":
	case "sqlite":
		if g.sqlitePath == "" {
			return nil, fmt.Errorf("--sqlite-path is required with --remote=sqlite")
		}
		store, err := sqlite.Open[json.RawMessage](g.sqliteConfig(cfg))
		if err != nil {
			return nil, err
		}
		opt.Remote = store
		s.closers = append(s.closers, store)
	case "s3":
		if g.s3Bucket == "" {
			return nil, fmt.Errorf("--s3-bucket is required with --remote=s3")
		}
		client, err := s3.NewClient(ctx.Context, s3.ClientConfig{
			Region:         g.s3Region,
			Endpoint:       g.s3Endpoint,
			ForcePathStyle: g.s3PathStyle,
			AccessKey:      g.s3AccessKey,
			SecretKey:      g.s3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		store, err := s3.New[json.RawMessage](client, g.s3Config(cfg))
		if err != nil {
			return nil, err
		}
		opt.Remote = store
	default:
		return nil, fmt.Errorf("unknown remote %q (use none, sqlite or s3)", g.remote)
	}

	s.layer = cache.New(opt)
	if err := s.layer.Initialize(); err != nil {
		for _, c := range s.closers {
			_ = c.Close()
		}
		return nil, err
	}
	return s, nil
}

// sqliteConfig carries the L3 TTL of cfg over to the SQLite tier.
func (g *globals) sqliteConfig(cfg cache.Config) sqlite.Config {
	return sqlite.Config{Path: g.sqlitePath, TTL: cfg.L3TTL}
}

// s3Config carries the L3 TTL of cfg over to the S3 tier.
func (g *globals) s3Config(cfg cache.Config) s3.Config {
	return s3.Config{
		Bucket: g.s3Bucket,
		Prefix: g.s3Prefix,
		TTL:    cfg.L3TTL,
	}
}

// parseValue accepts a JSON document, or wraps anything else as a string.
func parseValue(raw string) json.RawMessage {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	b, _ := json.Marshal(raw)
	return b
}
