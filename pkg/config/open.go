package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeGROOVE-dev/quotacache"
	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/cloudrun"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/compress"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/datastore"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/goredis"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/memory"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/valkey"
)

// Open builds the configured medium, store, and Manager.
// The caller owns the Manager and must Close it.
func Open(ctx context.Context, cfg *Config) (*quotacache.Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger()

	m, err := OpenMedium(ctx, cfg.Medium)
	if err != nil {
		return nil, err
	}

	st := store.New(m, cfg.StoreOptions(log)...)
	return quotacache.New(st, cfg.ManagerOptions(log)...), nil
}

// OpenMedium connects to the configured backend. Remote backends without a
// native byte quota are wrapped with store.Quota when a quota is set.
func OpenMedium(ctx context.Context, mc MediumConfig) (store.Medium, error) {
	comp, err := compress.ByName(mc.Compressor)
	if err != nil {
		return nil, err
	}

	var m store.Medium
	switch mc.Backend {
	case BackendMemory:
		return memory.New(mc.Quota), nil
	case BackendLocalFS:
		return localfs.New(mc.CacheID, mc.Dir, mc.Quota, comp)
	case BackendCloudRun:
		return cloudrun.New(ctx, mc.CacheID, mc.Quota, comp)
	case BackendValkey:
		m, err = valkey.New(ctx, mc.CacheID, mc.Addr, comp)
	case BackendRedis:
		m, err = goredis.Dial(ctx, mc.Addr, mc.Password, mc.DB, mc.CacheID, comp)
	case BackendDatastore:
		m, err = datastore.New(ctx, mc.CacheID, comp)
	default:
		return nil, fmt.Errorf("unknown backend %q", mc.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s medium: %w", mc.Backend, err)
	}

	if mc.Quota <= 0 {
		return m, nil
	}
	q, err := store.Quota(ctx, m, mc.Quota)
	if err != nil {
		m.Close() //nolint:errcheck // the quota error is the one worth returning
		return nil, fmt.Errorf("account %s quota: %w", mc.Backend, err)
	}
	return q, nil
}

// StoreOptions translates the store settings.
func (c *Config) StoreOptions(log *slog.Logger) []store.Option {
	sizeFn := store.UTF16Size
	if c.Store.SizeStrategy == "bytes" {
		sizeFn = store.ByteSize
	}
	return []store.Option{
		store.WithPrefix(c.Store.Prefix),
		store.WithRecoveryPrefix(c.Store.RecoveryPrefix),
		store.WithSizeFunc(sizeFn),
		store.WithLogger(log),
	}
}

// ManagerOptions translates the cache settings.
func (c *Config) ManagerOptions(log *slog.Logger) []quotacache.Option {
	return []quotacache.Option{
		quotacache.WithTTL(c.Cache.TTL),
		quotacache.WithMaxSize(c.Cache.MaxSize),
		quotacache.WithPruneThreshold(c.Cache.PruneThreshold),
		quotacache.WithEvictFraction(c.Cache.EvictFraction),
		quotacache.WithLogger(log),
	}
}
