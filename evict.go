package quotacache

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/quotacache/pkg/glob"
)

// Prune removes every expired entry and returns how many were removed.
func (m *Manager) Prune(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(ctx, m.now())
}

func (m *Manager) pruneLocked(ctx context.Context, now time.Time) int {
	n := 0
	for _, k := range m.entryKeys(ctx) {
		var e entry
		if !m.store.Load(ctx, k, &e) || !e.expired(now) {
			continue
		}
		if m.removeLocked(ctx, k) {
			n++
		}
	}
	m.expirations += uint64(n)
	return n
}

// Clear removes cache entries and returns how many were removed.
// With no pattern (or an empty one) every record under KeyPrefix goes,
// including orphaned metadata. Otherwise only entries whose full key matches
// the pattern are removed; '*' matches any run of characters.
func (m *Manager) Clear(ctx context.Context, pattern ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(pattern) == 0 || pattern[0] == "" {
		n := 0
		for _, k := range m.store.Keys(ctx) {
			if !strings.HasPrefix(k, KeyPrefix) {
				continue
			}
			if m.store.Remove(ctx, k) && !isMetaKey(k) {
				n++
			}
		}
		return n
	}

	match := glob.Compile(pattern[0])
	n := 0
	for _, k := range m.entryKeys(ctx) {
		if match.Match(k) && m.removeLocked(ctx, k) {
			n++
		}
	}
	return n
}

// Invalidate removes every entry in namespace, as Clear(KeyPrefix+namespace+":*").
func (m *Manager) Invalidate(ctx context.Context, namespace string) int {
	return m.Clear(ctx, KeyPrefix+namespace+":*")
}

// checkAndPrune runs before every Set: once the store reaches the prune
// threshold it drops expired entries, and if that is not enough, evicts.
func (m *Manager) checkAndPrune(ctx context.Context, now time.Time) {
	limit := int64(float64(m.maxSize) * m.pruneThreshold)
	if m.store.Size(ctx) < limit {
		return
	}

	pruned := m.pruneLocked(ctx, now)
	size := m.store.Size(ctx)
	if size < limit {
		m.log.Debug("cache pruned below threshold", "pruned", pruned, "size", size, "limit", limit)
		return
	}

	evicted := m.evictLRU(ctx)
	m.log.Debug("cache evicted under storage pressure",
		"pruned", pruned, "evicted", evicted, "size", size, "limit", limit)
}

// candidate is one entry's eviction rank, captured before any deletion.
type candidate struct {
	key      string
	count    int64
	accessed time.Time
}

// evictLRU removes the lowest-ranked share of entries: fewest accesses
// first, then least recently accessed, then key order. Entries that fail
// to decode rank lowest.
//
// Ranks are snapshotted, sorted, then deleted; nothing is re-read after the
// snapshot.
func (m *Manager) evictLRU(ctx context.Context) int {
	keys := m.entryKeys(ctx)
	if len(keys) == 0 {
		return 0
	}

	cands := make([]candidate, 0, len(keys))
	for _, k := range keys {
		c := candidate{key: k}
		var e entry
		if m.store.Load(ctx, k, &e) {
			c.count = e.AccessCount
			c.accessed = e.lastUsed()
		}
		var md meta
		if m.store.Load(ctx, metaKey(k), &md) && md.LastAccess.After(c.accessed) {
			c.accessed = md.LastAccess
		}
		cands = append(cands, c)
	}

	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(a.count, b.count); c != 0 {
			return c
		}
		if c := a.accessed.Compare(b.accessed); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})

	n := int(math.Ceil(m.evictFraction * float64(len(cands))))
	n = min(n, len(cands))

	removed := 0
	for _, c := range cands[:n] {
		if m.removeLocked(ctx, c.key) {
			removed++
		}
	}
	m.evictions += uint64(removed)
	return removed
}
