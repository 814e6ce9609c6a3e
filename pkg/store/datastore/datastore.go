// Package datastore provides a Google Cloud Datastore medium for quotacache.
package datastore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	ds "github.com/codeGROOVE-dev/ds9/pkg/datastore"
	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/compress"
)

const (
	datastoreKind = "CacheRecord"

	// maxEntityBytes is Datastore's entity size limit, less headroom for
	// property names and the key.
	maxEntityBytes = 1<<20 - 4096
)

// Medium implements store.Medium using Google Cloud Datastore.
type Medium struct {
	client     *ds.Client
	kind       string
	compressor compress.Compressor
}

// record represents one key in Datastore.
// We use base64-encoded string for Value to avoid datastore []byte limitations.
// The key is stored in the Datastore entity key itself.
type record struct {
	UpdatedAt time.Time `datastore:"updated_at"`
	Value     string    `datastore:"value,noindex"`
}

// New creates a Datastore medium.
// The cacheID is used as the Datastore database name.
// Optional compressor enables compression (default: no compression).
func New(ctx context.Context, cacheID string, c ...compress.Compressor) (*Medium, error) {
	comp := compress.None()
	if len(c) > 0 && c[0] != nil {
		comp = c[0]
	}

	// Empty project ID lets ds9 auto-detect
	client, err := ds.NewClientWithDatabase(ctx, "", cacheID)
	if err != nil {
		return nil, fmt.Errorf("create datastore client: %w", err)
	}

	return &Medium{
		client:     client,
		kind:       datastoreKind,
		compressor: comp,
	}, nil
}

func (m *Medium) makeKey(key string) *ds.Key {
	return ds.NameKey(m.kind, key, nil)
}

// Location returns the Datastore key path for a given key.
// Format: "kind/key" (e.g., "CacheRecord/qc_cache_feed:home").
func (m *Medium) Location(key string) string {
	return m.kind + "/" + key
}

// GetItem retrieves a value from Datastore.
func (m *Medium) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	var r record
	if err := m.client.Get(ctx, m.makeKey(key), &r); err != nil {
		if errors.Is(err, ds.ErrNoSuchEntity) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("datastore get: %w", err)
	}

	b, err := base64.StdEncoding.DecodeString(r.Value)
	if err != nil {
		return nil, false, fmt.Errorf("decode base64: %w", err)
	}
	v, err := m.compressor.Decode(b)
	if err != nil {
		return nil, false, fmt.Errorf("decompress: %w", err)
	}
	return v, true, nil
}

// SetItem saves a value to Datastore. Values that would exceed the entity
// size limit are rejected with store.ErrQuotaExceeded.
func (m *Medium) SetItem(ctx context.Context, key string, value []byte) error {
	data, err := m.compressor.Encode(value)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	r := record{
		Value:     base64.StdEncoding.EncodeToString(data),
		UpdatedAt: time.Now(),
	}
	if n := len(r.Value) + len(key); n > maxEntityBytes {
		return fmt.Errorf("entity %s is %d bytes: %w", key, n, store.ErrQuotaExceeded)
	}

	if _, err := m.client.Put(ctx, m.makeKey(key), &r); err != nil {
		return fmt.Errorf("datastore put: %w", err)
	}
	return nil
}

// RemoveItem removes a value from Datastore.
func (m *Medium) RemoveItem(ctx context.Context, key string) error {
	if err := m.client.Delete(ctx, m.makeKey(key)); err != nil {
		return fmt.Errorf("datastore delete: %w", err)
	}
	return nil
}

// Keys lists every key of this medium's kind.
func (m *Medium) Keys(ctx context.Context) ([]string, error) {
	keys, err := m.client.AllKeys(ctx, ds.NewQuery(m.kind).KeysOnly())
	if err != nil {
		return nil, fmt.Errorf("query all keys: %w", err)
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Name)
	}
	return out, nil
}

// Close releases Datastore client resources.
func (m *Medium) Close() error {
	return m.client.Close()
}
