package goredis

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the subset of redis.Cmdable the medium uses.
// Calling anything else panics on the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable
	data   map[string]string
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return redis.NewScanCmdResult(keys, 0, nil)
}

func TestMedium_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	f.data["other:foreign"] = "x"

	m, err := New(ctx, f, "app")
	require.NoError(t, err)

	require.NoError(t, m.SetItem(ctx, "qc_cache_feed:1", []byte(`{"a":1}`)))
	require.NoError(t, m.SetItem(ctx, "qc_cache_feed:2", []byte(`{"a":2}`)))
	assert.Equal(t, `{"a":1}`, f.data["app:qc_cache_feed:1"])

	v, ok, err := m.GetItem(ctx, "qc_cache_feed:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(v))

	_, ok, err = m.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"qc_cache_feed:1", "qc_cache_feed:2"}, keys)

	require.NoError(t, m.RemoveItem(ctx, "qc_cache_feed:1"))
	_, ok, _ = m.GetItem(ctx, "qc_cache_feed:1")
	assert.False(t, ok)
}

func TestMedium_OOMIsQuotaExceeded(t *testing.T) {
	ctx := context.Background()
	f := newFakeRedis()
	m, err := New(ctx, f, "app")
	require.NoError(t, err)

	f.setErr = errors.New("OOM command not allowed when used memory > 'maxmemory'.")
	err = m.SetItem(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, store.ErrQuotaExceeded)

	f.setErr = errors.New("READONLY You can't write against a read only replica.")
	err = m.SetItem(ctx, "k", []byte("v"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrQuotaExceeded)
}

func TestNew_EmptyCacheID(t *testing.T) {
	_, err := New(context.Background(), newFakeRedis(), "")
	assert.Error(t, err)
}
