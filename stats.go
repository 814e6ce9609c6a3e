package quotacache

import (
	"context"
	"time"
)

// Stats is a snapshot of cache usage.
type Stats struct {
	TotalEntries       int       `json:"totalEntries"`
	ValidEntries       int       `json:"validEntries"`
	ExpiredEntries     int       `json:"expiredEntries"`
	TotalSize          int64     `json:"totalSize"`          // approximate bytes, whole store namespace
	UtilizationPercent float64   `json:"utilizationPercent"` // TotalSize / max size * 100
	OldestEntry        time.Time `json:"oldestEntry"`        // by creation; zero when empty
	NewestEntry        time.Time `json:"newestEntry"`

	// Counters since the Manager was created.
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Expirations uint64 `json:"expirations"`
	Evictions   uint64 `json:"evictions"`
}

// Stats scans every entry and returns usage figures. It does not modify
// entries; expired ones are counted, not removed.
func (m *Manager) Stats(ctx context.Context) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	st := Stats{
		Hits:        m.hits,
		Misses:      m.misses,
		Expirations: m.expirations,
		Evictions:   m.evictions,
	}

	for _, k := range m.entryKeys(ctx) {
		var e entry
		if !m.store.Load(ctx, k, &e) {
			continue
		}
		st.TotalEntries++
		if e.expired(now) {
			st.ExpiredEntries++
		} else {
			st.ValidEntries++
		}
		if st.OldestEntry.IsZero() || e.CreatedAt.Before(st.OldestEntry) {
			st.OldestEntry = e.CreatedAt
		}
		if e.CreatedAt.After(st.NewestEntry) {
			st.NewestEntry = e.CreatedAt
		}
	}

	st.TotalSize = m.store.Size(ctx)
	st.UtilizationPercent = float64(st.TotalSize) / float64(m.maxSize) * 100
	return st
}

// MaxSize returns the configured byte ceiling.
func (m *Manager) MaxSize() int64 {
	return m.maxSize
}
