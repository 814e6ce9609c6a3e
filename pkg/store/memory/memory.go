// Package memory provides an in-process, quota-bounded medium for quotacache.
//
// It mirrors a browser-style storage area: a flat string-keyed map with a
// hard byte ceiling, rejecting writes that would exceed it rather than
// evicting anything itself.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeGROOVE-dev/quotacache/pkg/store"
)

// DefaultQuota matches the common 5 MiB web-storage allowance.
const DefaultQuota = 5 << 20

// Medium is a concurrency-safe in-memory store.Medium.
type Medium struct {
	mu    sync.RWMutex
	items map[string][]byte
	quota int64
	used  int64
}

// New creates an empty medium holding at most quota bytes of keys and
// values. A quota <= 0 uses DefaultQuota.
func New(quota int64) *Medium {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &Medium{
		items: make(map[string][]byte),
		quota: quota,
	}
}

// GetItem returns a copy of the value stored under key.
func (m *Medium) GetItem(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

// SetItem stores a copy of value, failing with store.ErrQuotaExceeded if the
// write would take the medium past its quota.
func (m *Medium) SetItem(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + int64(len(key)+len(value))
	if old, ok := m.items[key]; ok {
		next -= int64(len(key) + len(old))
	}
	if next > m.quota {
		return fmt.Errorf("set %s: %d of %d bytes: %w", key, next, m.quota, store.ErrQuotaExceeded)
	}

	m.items[key] = cloneBytes(value)
	m.used = next
	return nil
}

// RemoveItem deletes key.
func (m *Medium) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.items[key]; ok {
		m.used -= int64(len(key) + len(old))
		delete(m.items, key)
	}
	return nil
}

// Keys returns every key held, in map order.
func (m *Medium) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.items))
	for k := range m.items {
		out = append(out, k)
	}
	return out, nil
}

// Len returns the number of records held.
func (m *Medium) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Used returns the bytes currently held.
func (m *Medium) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// Close is a no-op, provided to satisfy store.Medium.
func (*Medium) Close() error {
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
