package store

import (
	"context"
	"fmt"
	"sync"
)

// QuotaMedium enforces a byte ceiling over a medium that has none of its own.
type QuotaMedium struct {
	Medium

	mu    sync.Mutex
	max   int64
	used  int64
	sizes map[string]int64
}

// Quota wraps m so that writes taking the total of len(key)+len(value) past
// maxBytes fail with ErrQuotaExceeded. Existing records are counted at
// construction.
func Quota(ctx context.Context, m Medium, maxBytes int64) (*QuotaMedium, error) {
	q := &QuotaMedium{
		Medium: m,
		max:    maxBytes,
		sizes:  make(map[string]int64),
	}

	keys, err := m.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate keys: %w", err)
	}
	for _, k := range keys {
		v, found, err := m.GetItem(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		if !found {
			continue
		}
		n := ByteSize(k, v)
		q.sizes[k] = n
		q.used += n
	}
	return q, nil
}

// SetItem implements Medium.
func (q *QuotaMedium) SetItem(ctx context.Context, key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := ByteSize(key, value)
	next := q.used - q.sizes[key] + n
	if next > q.max {
		return fmt.Errorf("set %s (%d bytes, %d of %d used): %w", key, n, q.used, q.max, ErrQuotaExceeded)
	}
	if err := q.Medium.SetItem(ctx, key, value); err != nil {
		return err
	}
	q.used = next
	q.sizes[key] = n
	return nil
}

// RemoveItem implements Medium.
func (q *QuotaMedium) RemoveItem(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.Medium.RemoveItem(ctx, key); err != nil {
		return err
	}
	q.used -= q.sizes[key]
	delete(q.sizes, key)
	return nil
}

// Used returns the bytes currently accounted against the quota.
func (q *QuotaMedium) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}
