package store

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by a Medium when a write would take it past
// its capacity. Store.Set recovers from it once; any other error is final.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Medium is the raw backing medium a Store serializes into.
// Uses only standard library types, so implementations can satisfy it
// without importing this package's helpers.
//
// Keys are the medium's own keys: a Store adds its prefix before calling in.
// Single-key reads and writes must be atomic (no torn writes).
type Medium interface {
	// GetItem returns the bytes stored under key, or found=false.
	GetItem(ctx context.Context, key string) (value []byte, found bool, err error)

	// SetItem stores value under key, returning ErrQuotaExceeded (possibly
	// wrapped) when the medium is full.
	SetItem(ctx context.Context, key string, value []byte) error

	// RemoveItem deletes key; absence is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Keys enumerates every key held by the medium, in any order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the medium.
	Close() error
}
