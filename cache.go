// Package quotacache provides a TTL cache over a quota-limited, serialize-only
// persistent store, with frequency-weighted LRU eviction under storage
// pressure, namespace invalidation, and usage statistics.
//
// The Manager never returns errors: store and serialization failures are
// logged and surface as misses, false, or zero counts, so callers can always
// fall back to their primary data source.
package quotacache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/quotacache/pkg/store"
)

// Manager is a TTL- and capacity-aware cache layered on a store.Store.
//
// Every operation holds a single mutex for its whole duration: eviction
// ranks all entries at once, so per-key locking would not be enough.
type Manager struct {
	mu sync.Mutex

	store *store.Store
	log   *slog.Logger
	now   func() time.Time

	defaultTTL     time.Duration
	maxSize        int64
	pruneThreshold float64
	evictFraction  float64

	hits        uint64
	misses      uint64
	expirations uint64
	evictions   uint64
}

// New creates a cache manager over st.
//
// Example:
//
//	st := store.New(memory.New(0))
//	cache := quotacache.New(st,
//	    quotacache.WithTTL(10*time.Minute),
//	    quotacache.WithMaxSize(4<<20),
//	)
//	key := cache.GenerateKey("timeline", "home")
//	cache.Set(ctx, key, posts)
//	var cached []Post
//	if cache.Get(ctx, key, &cached) { ... }
func New(st *store.Store, opts ...Option) *Manager {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Manager{
		store:          st,
		log:            cfg.logger,
		now:            cfg.now,
		defaultTTL:     cfg.defaultTTL,
		maxSize:        cfg.maxSize,
		pruneThreshold: cfg.pruneThreshold,
		evictFraction:  cfg.evictFraction,
	}
}

// GenerateKey builds a cache key; see the package-level GenerateKey.
func (*Manager) GenerateKey(namespace string, identifier any) string {
	return GenerateKey(namespace, identifier)
}

// Set stores data under key with the given TTL, or the default TTL if none
// (or a non-positive one) is given. Before writing it runs capacity
// maintenance, which may remove unrelated entries.
// It reports whether the store accepted the write.
//
// Keys should come from GenerateKey. A key without KeyPrefix is stored and
// readable, but Stats, Clear, Prune and eviction never see it. A key shaped
// like a metadata record (MetaPrefix + KeyPrefix + ...) is rejected.
func (m *Manager) Set(ctx context.Context, key string, data any, ttl ...time.Duration) bool {
	if isMetaKey(key) {
		m.log.Warn("cache key collides with access metadata", "key", key)
		return false
	}
	if !strings.HasPrefix(key, KeyPrefix) {
		m.log.Warn("cache key lacks prefix; entry is invisible to maintenance", "key", key, "prefix", KeyPrefix)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		m.log.Warn("cache encode failed", "key", key, "error", err)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		d = ttl[0]
	}
	now := m.now()

	m.checkAndPrune(ctx, now)

	e := entry{
		Data:       raw,
		ExpiresAt:  now.Add(d),
		CreatedAt:  now,
		AccessedAt: now,
	}
	if !m.store.Set(ctx, key, &e) {
		return false
	}
	m.touch(ctx, key, now)
	return true
}

// Get decodes the fresh value under key into dst (which may be nil to only
// count the access) and reports whether it was a hit.
//
// An expired entry is deleted and reported as a miss. A hit increments the
// entry's access count, sets its access time, and rewrites it.
func (m *Manager) Get(ctx context.Context, key string, dst any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	var e entry
	if !m.store.Load(ctx, key, &e) {
		m.misses++
		return false
	}

	now := m.now()
	if e.expired(now) {
		m.removeLocked(ctx, key)
		m.expirations++
		m.misses++
		return false
	}

	if dst != nil {
		if err := json.Unmarshal(e.Data, dst); err != nil {
			m.log.Warn("cached value does not decode", "key", key, "error", err)
			m.misses++
			return false
		}
	}

	e.AccessCount++
	e.AccessedAt = now
	m.store.Set(ctx, key, &e)
	m.touch(ctx, key, now)
	m.hits++
	return true
}

// Has reports whether key holds a fresh entry. It is a read-only probe: it
// neither records an access nor deletes an expired entry.
func (m *Manager) Has(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	var e entry
	if !m.store.Load(ctx, key, &e) {
		return false
	}
	return !e.expired(m.now())
}

// Remove deletes key and its access metadata.
func (m *Manager) Remove(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(ctx, key)
}

func (m *Manager) removeLocked(ctx context.Context, key string) bool {
	ok := m.store.Remove(ctx, key)
	m.store.Remove(ctx, metaKey(key))
	return ok
}

// touch refreshes the access metadata for key. Failures only cost eviction
// accuracy and are left to the store's logging.
func (m *Manager) touch(ctx context.Context, key string, now time.Time) {
	m.store.Set(ctx, metaKey(key), meta{LastAccess: now, Key: key})
}

// entryKeys lists every cache entry key, excluding metadata records.
func (m *Manager) entryKeys(ctx context.Context) []string {
	keys := m.store.Keys(ctx)
	out := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, KeyPrefix) && !isMetaKey(k) {
			out = append(out, k)
		}
	}
	return out
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// GetAs returns the fresh value under key decoded as V.
func GetAs[V any](ctx context.Context, m *Manager, key string) (V, bool) {
	var v V
	if !m.Get(ctx, key, &v) {
		var zero V
		return zero, false
	}
	return v, true
}

// Fetch returns the cached value under key, or calls loader and caches its
// result. Loader errors are returned as-is and nothing is cached; a failed
// cache write is logged by the store and does not fail the call.
func Fetch[V any](ctx context.Context, m *Manager, key string, loader func(context.Context) (V, error), ttl ...time.Duration) (V, error) {
	if v, ok := GetAs[V](ctx, m, key); ok {
		return v, nil
	}

	v, err := loader(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	m.Set(ctx, key, v, ttl...)
	return v, nil
}
