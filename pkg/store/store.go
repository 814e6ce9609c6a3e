// Package store provides a namespaced, serialize-only key-value store over a
// capacity-limited Medium.
//
// Values are JSON-encoded. Every operation absorbs medium failures and
// degrades to a safe result (nil, false, 0, empty); the only recovery the
// store attempts is on a full medium: Set clears the store's cache
// sub-namespace and retries the write exactly once.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
)

const (
	// DefaultPrefix namespaces every key a Store writes to its medium.
	DefaultPrefix = "qc_"

	// DefaultRecoveryPrefix is the sub-namespace Set clears when the medium is full.
	DefaultRecoveryPrefix = "cache_"
)

// Store is a namespaced JSON key-value store.
// It holds no state of its own beyond configuration; concurrent use is as
// safe as the underlying Medium.
type Store struct {
	medium   Medium
	prefix   string
	recovery string
	size     SizeFunc
	log      *slog.Logger
}

type config struct {
	prefix   string
	recovery string
	size     SizeFunc
	log      *slog.Logger
}

// Option configures a Store.
type Option func(*config)

// WithPrefix sets the namespace prefix prepended to every key on the medium.
func WithPrefix(p string) Option {
	return func(c *config) {
		c.prefix = p
	}
}

// WithRecoveryPrefix sets the sub-namespace (relative to the store prefix)
// that Set clears when the medium reports ErrQuotaExceeded.
func WithRecoveryPrefix(p string) Option {
	return func(c *config) {
		c.recovery = p
	}
}

// WithSizeFunc sets the size estimation strategy used by Size.
func WithSizeFunc(f SizeFunc) Option {
	return func(c *config) {
		if f != nil {
			c.size = f
		}
	}
}

// WithLogger sets the logger for absorbed failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Store over m.
func New(m Medium, opts ...Option) *Store {
	cfg := &config{
		prefix:   DefaultPrefix,
		recovery: DefaultRecoveryPrefix,
		size:     UTF16Size,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Store{
		medium:   m,
		prefix:   cfg.prefix,
		recovery: cfg.recovery,
		size:     cfg.size,
		log:      cfg.log,
	}
}

// Prefix returns the namespace prefix used on the medium.
func (s *Store) Prefix() string {
	return s.prefix
}

// Get returns the decoded value stored under key.
// A missing key yields def[0] if given, nil otherwise. A value that does not
// decode as JSON is returned as the raw stored string.
func (s *Store) Get(ctx context.Context, key string, def ...any) any {
	var fallback any
	if len(def) > 0 {
		fallback = def[0]
	}

	raw, ok := s.read(ctx, key)
	if !ok {
		return fallback
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// Load decodes the value stored under key into dst.
// It reports false on a miss, a medium failure, or a value that does not
// decode into dst.
func (s *Store) Load(ctx context.Context, key string, dst any) bool {
	raw, ok := s.read(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Warn("stored value does not decode", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) read(ctx context.Context, key string) ([]byte, bool) {
	raw, found, err := s.medium.GetItem(ctx, s.prefix+key)
	if err != nil {
		s.log.Warn("store read failed", "key", key, "error", err)
		return nil, false
	}
	return raw, found
}

// Set encodes value and writes it under key, reporting whether it was persisted.
//
// If the medium is full, every record under the recovery sub-namespace is
// removed and the write is retried once.
func (s *Store) Set(ctx context.Context, key string, value any) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("store encode failed", "key", key, "error", err)
		return false
	}

	err = s.medium.SetItem(ctx, s.prefix+key, data)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		s.log.Warn("store write failed", "key", key, "error", err)
		return false
	}

	n := s.clearPrefix(ctx, s.prefix+s.recovery)
	s.log.Warn("storage quota exceeded, cleared cache namespace and retrying",
		"key", key, "removed", n)

	if err := s.medium.SetItem(ctx, s.prefix+key, data); err != nil {
		s.log.Warn("store write failed after quota recovery", "key", key, "error", err)
		return false
	}
	return true
}

// Remove deletes key, reporting whether the medium accepted the removal.
func (s *Store) Remove(ctx context.Context, key string) bool {
	if err := s.medium.RemoveItem(ctx, s.prefix+key); err != nil {
		s.log.Warn("store remove failed", "key", key, "error", err)
		return false
	}
	return true
}

// Has reports whether key exists.
func (s *Store) Has(ctx context.Context, key string) bool {
	_, ok := s.read(ctx, key)
	return ok
}

// Clear removes every key in the store's namespace and returns how many were
// removed. Keys outside the namespace are untouched.
func (s *Store) Clear(ctx context.Context) int {
	return s.clearPrefix(ctx, s.prefix)
}

func (s *Store) clearPrefix(ctx context.Context, prefix string) int {
	keys, err := s.medium.Keys(ctx)
	if err != nil {
		s.log.Warn("store key enumeration failed", "error", err)
		return 0
	}

	n := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := s.medium.RemoveItem(ctx, k); err != nil {
			s.log.Warn("store remove failed", "key", k, "error", err)
			continue
		}
		n++
	}
	return n
}

// Keys returns every key in the namespace with the prefix stripped.
// Order depends on the medium and must not be relied upon.
func (s *Store) Keys(ctx context.Context) []string {
	keys, err := s.medium.Keys(ctx)
	if err != nil {
		s.log.Warn("store key enumeration failed", "error", err)
		return nil
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if rest, ok := strings.CutPrefix(k, s.prefix); ok {
			out = append(out, rest)
		}
	}
	return out
}

// Size returns the approximate number of bytes used by the namespace,
// summing the size strategy over each record's medium key and serialized value.
func (s *Store) Size(ctx context.Context) int64 {
	keys, err := s.medium.Keys(ctx)
	if err != nil {
		s.log.Warn("store key enumeration failed", "error", err)
		return 0
	}

	var total int64
	for _, k := range keys {
		if !strings.HasPrefix(k, s.prefix) {
			continue
		}
		raw, found, err := s.medium.GetItem(ctx, k)
		if err != nil || !found {
			continue
		}
		total += s.size(k, raw)
	}
	return total
}

// Close releases the medium.
func (s *Store) Close() error {
	return s.medium.Close()
}
