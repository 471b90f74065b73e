// Package s3 implements a cache.RemoteTier on top of an S3 bucket.
//
// Each value is one JSON object at <prefix>/<namespace>/<key>.json, with
// namespace and key path-escaped into one segment each. The
// object's LastModified time drives the L3 TTL, so no sidecar metadata is
// needed and objects written by other tools are readable as long as they
// hold valid JSON.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/cache"
)

// Defaults applied by New.
const (
	DefaultTimeout       = 5 * time.Second
	DefaultProbeInterval = 30 * time.Second
)

// API is the subset of *s3.Client used by Store.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config configures a Store.
type Config struct {
	Bucket string
	// Prefix is prepended to every object key; may be empty.
	Prefix string
	// Timeout bounds each S3 call.
	Timeout time.Duration
	// ProbeInterval is how long an IsAvailable answer is reused.
	ProbeInterval time.Duration
	// TTL is compared with the object's LastModified. Zero means cache.DefaultL3TTL.
	TTL    time.Duration
	Logger logrus.FieldLogger
}

// Store is an S3-backed remote tier. Safe for concurrent use.
type Store[V any] struct {
	api API
	cfg Config
	log logrus.FieldLogger
	now func() time.Time

	mu        sync.Mutex
	probedAt  time.Time
	available bool
}

// New wraps api (usually an *s3.Client) as a remote tier.
func New[V any](api API, cfg Config) (*Store[V], error) {
	if api == nil {
		return nil, errors.New("s3: nil client")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket name cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultL3TTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Store[V]{
		api: api,
		cfg: cfg,
		log: cfg.Logger.WithFields(logrus.Fields{"tier": "l3-s3", "bucket": cfg.Bucket}),
		now: time.Now,
	}, nil
}

// IsAvailable reports whether the bucket answered HeadBucket recently.
// The answer is cached for ProbeInterval.
func (s *Store[V]) IsAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.probedAt.IsZero() && now.Sub(s.probedAt) < s.cfg.ProbeInterval {
		return s.available
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})

	up := err == nil
	if up != s.available || s.probedAt.IsZero() {
		entry := s.log.WithField("available", up)
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("s3: availability changed")
	}
	s.available = up
	s.probedAt = now
	return up
}

// Get fetches and decodes the object for (ns, key). Missing, stale and
// undecodable objects are misses; transport errors are logged.
func (s *Store[V]) Get(ns, key string) (V, bool) {
	var zero V
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	objKey := s.objectKey(ns, key)
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if !isNotFound(err) {
			s.log.WithError(err).WithField("key", objKey).Warn("s3: get failed")
		}
		return zero, false
	}
	defer out.Body.Close()

	if out.LastModified != nil && s.now().Sub(*out.LastModified) > s.cfg.TTL {
		s.log.WithField("key", objKey).Debug("s3: object past ttl")
		return zero, false
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		s.log.WithError(err).WithField("key", objKey).Warn("s3: read body failed")
		return zero, false
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.WithError(err).WithField("key", objKey).Warn("s3: undecodable object")
		return zero, false
	}
	return v, true
}

// Set uploads v as JSON.
func (s *Store[V]) Set(ns, key string, v V) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("s3: encode %q: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	objKey := s.objectKey(ns, key)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(objKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("PutObject failed for %s: %w", objKey, err)
	}
	return nil
}

// Delete removes the object for (ns, key). A missing object is not an error.
func (s *Store[V]) Delete(ns, key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	objKey := s.objectKey(ns, key)
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("DeleteObject failed for %s: %w", objKey, err)
	}
	return nil
}

// objectKey maps (ns, key) to <prefix>/<ns>/<key>.json. ns and key are
// escaped into single path segments, so distinct keys never share an object
// and no key can climb out of its namespace.
func (s *Store[V]) objectKey(ns, key string) string {
	return path.Join(s.cfg.Prefix, escapeSegment(ns), escapeSegment(key)+".json")
}

// escapeSegment path-escapes s and spells out the dot segments that
// path.Join would otherwise resolve.
func escapeSegment(s string) string {
	switch s {
	case ".", "..":
		return strings.ReplaceAll(s, ".", "%2E")
	}
	return url.PathEscape(s)
}

// isNotFound matches both the typed NoSuchKey error and the bare 404 code
// S3 returns when the response has no body.
func isNotFound(err error) bool {
	if isErrorType[*s3types.NoSuchKey](err) || isErrorType[*s3types.NotFound](err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

var _ cache.RemoteTier[string] = (*Store[string])(nil)
