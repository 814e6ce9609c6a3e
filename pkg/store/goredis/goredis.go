// Package goredis provides a Redis medium for quotacache built on go-redis.
//
// Use it when the application already owns a go-redis client; the valkey
// package opens its own connection instead.
package goredis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/compress"
	"github.com/go-redis/redis/v8"
)

const scanCount = 100

// Medium implements store.Medium over a redis.Cmdable.
type Medium struct {
	r          redis.Cmdable
	prefix     string
	compressor compress.Compressor
}

// New creates a medium on an existing client, namespacing keys with cacheID.
// The connection is checked with PING.
func New(ctx context.Context, r redis.Cmdable, cacheID string, c ...compress.Compressor) (*Medium, error) {
	if cacheID == "" {
		return nil, errors.New("cacheID cannot be empty")
	}
	comp := compress.None()
	if len(c) > 0 && c[0] != nil {
		comp = c[0]
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Medium{r: r, prefix: cacheID + ":", compressor: comp}, nil
}

// Dial connects a new client to addr and wraps it in a Medium.
func Dial(ctx context.Context, addr, password string, db int, cacheID string, c ...compress.Compressor) (*Medium, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	m, err := New(ctx, client, cacheID, c...)
	if err != nil {
		_ = client.Close() //nolint:errcheck // connection already failed
		return nil, err
	}
	return m, nil
}

func (m *Medium) namespaced(key string) string {
	return m.prefix + key
}

// GetItem implements store.Medium.
func (m *Medium) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := m.r.Get(ctx, m.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	v, err := m.compressor.Decode(val)
	if err != nil {
		return nil, false, fmt.Errorf("decompress: %w", err)
	}
	return v, true, nil
}

// SetItem implements store.Medium. Keys are written without a server TTL.
func (m *Medium) SetItem(ctx context.Context, key string, value []byte) error {
	data, err := m.compressor.Encode(value)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if err := m.r.Set(ctx, m.namespaced(key), data, 0).Err(); err != nil {
		if strings.HasPrefix(err.Error(), "OOM ") {
			return fmt.Errorf("redis set: %w: %w", err, store.ErrQuotaExceeded)
		}
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// RemoveItem implements store.Medium.
func (m *Medium) RemoveItem(ctx context.Context, key string) error {
	if err := m.r.Del(ctx, m.namespaced(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Keys implements store.Medium using SCAN over the prefix.
func (m *Medium) Keys(ctx context.Context) ([]string, error) {
	var out []string
	var cur uint64
	for {
		keys, next, err := m.r.Scan(ctx, cur, m.prefix+"*", scanCount).Result()
		if err != nil {
			return out, fmt.Errorf("scan keys: %w", err)
		}
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, m.prefix))
		}
		cur = next
		if cur == 0 {
			return out, nil
		}
	}
}

// Close closes the client if it owns a connection pool.
func (m *Medium) Close() error {
	if c, ok := m.r.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
