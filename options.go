package quotacache

import (
	"log/slog"
	"time"
)

const (
	// DefaultTTL applies to writes that omit a TTL.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxSize keeps the cache under a 5 MiB web-storage style quota.
	DefaultMaxSize = 4608 << 10

	// DefaultPruneThreshold is the fraction of MaxSize at which a write
	// triggers maintenance.
	DefaultPruneThreshold = 0.8

	// DefaultEvictFraction is the share of entries removed by one eviction pass.
	DefaultEvictFraction = 0.25
)

// config holds Manager configuration, fixed at construction.
type config struct {
	defaultTTL     time.Duration
	maxSize        int64
	pruneThreshold float64
	evictFraction  float64
	now            func() time.Time
	logger         *slog.Logger
}

func defaultConfig() *config {
	return &config{
		defaultTTL:     DefaultTTL,
		maxSize:        DefaultMaxSize,
		pruneThreshold: DefaultPruneThreshold,
		evictFraction:  DefaultEvictFraction,
		now:            time.Now,
		logger:         slog.Default(),
	}
}

// Option configures a Manager.
type Option func(*config)

// WithTTL sets the default TTL for entries written without one.
func WithTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.defaultTTL = d
		}
	}
}

// WithMaxSize sets the byte ceiling the manager maintains the store under.
// It should not exceed the medium's real capacity.
func WithMaxSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithPruneThreshold sets the fraction of the max size, in (0, 1], at which
// a write first prunes expired entries and then evicts.
func WithPruneThreshold(f float64) Option {
	return func(c *config) {
		if f > 0 && f <= 1 {
			c.pruneThreshold = f
		}
	}
}

// WithEvictFraction sets the share of entries, in (0, 1], removed by one
// eviction pass. Default is 0.25.
func WithEvictFraction(f float64) Option {
	return func(c *config) {
		if f > 0 && f <= 1 {
			c.evictFraction = f
		}
	}
}

// WithClock replaces time.Now, for tests and simulations.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for absorbed failures and maintenance passes.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
