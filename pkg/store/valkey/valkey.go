// Package valkey provides a Valkey medium for quotacache.
//
// The server's own memory ceiling is the quota: writes rejected with an OOM
// error under maxmemory/noeviction are reported as store.ErrQuotaExceeded.
package valkey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/compress"
	"github.com/valkey-io/valkey-go"
)

const scanCount = 100

// Medium implements store.Medium using Valkey.
type Medium struct {
	client     valkey.Client
	prefix     string // Key prefix to namespace entries on a shared server
	compressor compress.Compressor
}

// New creates a Valkey medium.
// The cacheID is used as a key prefix to namespace entries.
// addr should be in the format "host:port" (e.g., "localhost:6379").
// Optional compressor enables compression (default: no compression).
func New(ctx context.Context, cacheID, addr string, c ...compress.Compressor) (*Medium, error) {
	if cacheID == "" {
		return nil, errors.New("cacheID cannot be empty")
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	comp := compress.None()
	if len(c) > 0 && c[0] != nil {
		comp = c[0]
	}

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w", err)
	}

	return &Medium{
		client:     client,
		prefix:     cacheID + ":",
		compressor: comp,
	}, nil
}

// Location returns the Valkey key for a given medium key.
func (m *Medium) Location(key string) string {
	return m.prefix + key
}

// GetItem retrieves a value from Valkey.
func (m *Medium) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := m.client.Do(ctx, m.client.B().Get().Key(m.Location(key)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}

	v, err := m.compressor.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("decompress: %w", err)
	}
	return v, true, nil
}

// SetItem saves a value to Valkey without expiry; expiry is the cache's concern.
func (m *Medium) SetItem(ctx context.Context, key string, value []byte) error {
	data, err := m.compressor.Encode(value)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	cmd := m.client.B().Set().Key(m.Location(key)).Value(valkey.BinaryString(data)).Build()
	if err := m.client.Do(ctx, cmd).Error(); err != nil {
		return classify("valkey set", err)
	}
	return nil
}

// RemoveItem removes a value from Valkey.
func (m *Medium) RemoveItem(ctx context.Context, key string) error {
	if err := m.client.Do(ctx, m.client.B().Del().Key(m.Location(key)).Build()).Error(); err != nil {
		return fmt.Errorf("valkey delete: %w", err)
	}
	return nil
}

// Keys returns every key under this medium's prefix, with the prefix stripped.
func (m *Medium) Keys(ctx context.Context) ([]string, error) {
	var out []string
	pat := m.prefix + "*"
	var cur uint64

	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		scan, err := m.client.Do(ctx, m.client.B().Scan().Cursor(cur).Match(pat).Count(scanCount).Build()).AsScanEntry()
		if err != nil {
			return out, fmt.Errorf("scan keys: %w", err)
		}
		for _, k := range scan.Elements {
			out = append(out, strings.TrimPrefix(k, m.prefix))
		}

		cur = scan.Cursor
		if cur == 0 {
			break
		}
	}

	return out, nil
}

// Close releases Valkey client resources.
func (m *Medium) Close() error {
	m.client.Close()
	return nil
}

// classify wraps err, marking server out-of-memory rejections as quota failures.
func classify(op string, err error) error {
	if isOOM(err) {
		return fmt.Errorf("%s: %w: %w", op, err, store.ErrQuotaExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isOOM reports whether err is the server refusing a write under maxmemory.
func isOOM(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "OOM ")
}
