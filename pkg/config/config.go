// Package config loads cache settings from the environment and opens a
// Manager on the configured medium.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/quotacache"
	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/joho/godotenv"
)

// Backends accepted in QUOTACACHE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendLocalFS   = "localfs"
	BackendValkey    = "valkey"
	BackendRedis     = "redis"
	BackendDatastore = "datastore"
	BackendCloudRun  = "cloudrun"
)

// Config is the full cache configuration read from the environment.
type Config struct {
	Cache  CacheConfig
	Store  StoreConfig
	Medium MediumConfig
	Log    LogConfig
}

// CacheConfig holds Manager settings.
type CacheConfig struct {
	TTL            time.Duration
	MaxSize        int64
	PruneThreshold float64
	EvictFraction  float64
}

// StoreConfig holds store namespace and size accounting settings.
type StoreConfig struct {
	Prefix         string
	RecoveryPrefix string
	SizeStrategy   string // utf16 or bytes
}

// MediumConfig selects and connects the backing medium.
type MediumConfig struct {
	Backend    string
	CacheID    string
	Dir        string // localfs root; empty means the OS cache dir
	Addr       string // valkey or redis host:port
	Password   string
	DB         int
	Quota      int64 // bytes; 0 means the medium's default
	Compressor string
}

// LogConfig controls the slog handler built by Logger.
type LogConfig struct {
	Level  string
	Format string // json or text
}

// Load reads QUOTACACHE_* variables, first loading a .env file from the
// working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

// LoadFile is Load with an explicit .env path, which must exist. Values in
// the file override the environment.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Overload(path); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Cache: CacheConfig{
			TTL:            getDurationEnv("QUOTACACHE_TTL", quotacache.DefaultTTL),
			MaxSize:        getInt64Env("QUOTACACHE_MAX_SIZE", quotacache.DefaultMaxSize),
			PruneThreshold: getFloatEnv("QUOTACACHE_PRUNE_THRESHOLD", quotacache.DefaultPruneThreshold),
			EvictFraction:  getFloatEnv("QUOTACACHE_EVICT_FRACTION", quotacache.DefaultEvictFraction),
		},
		Store: StoreConfig{
			Prefix:         getEnv("QUOTACACHE_PREFIX", store.DefaultPrefix),
			RecoveryPrefix: getEnv("QUOTACACHE_RECOVERY_PREFIX", quotacache.KeyPrefix),
			SizeStrategy:   strings.ToLower(getEnv("QUOTACACHE_SIZE_STRATEGY", "utf16")),
		},
		Medium: MediumConfig{
			Backend:    strings.ToLower(getEnv("QUOTACACHE_BACKEND", BackendMemory)),
			CacheID:    getEnv("QUOTACACHE_ID", "quotacache"),
			Dir:        getEnv("QUOTACACHE_DIR", ""),
			Addr:       getEnv("QUOTACACHE_ADDR", "localhost:6379"),
			Password:   getEnv("QUOTACACHE_PASSWORD", ""),
			DB:         getIntEnv("QUOTACACHE_DB", 0),
			Quota:      getInt64Env("QUOTACACHE_QUOTA", 0),
			Compressor: strings.ToLower(getEnv("QUOTACACHE_COMPRESSOR", "none")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("QUOTACACHE_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("QUOTACACHE_LOG_FORMAT", "text")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings Open could not honour.
func (c *Config) Validate() error {
	switch c.Medium.Backend {
	case BackendMemory, BackendLocalFS, BackendValkey, BackendRedis, BackendDatastore, BackendCloudRun:
	default:
		return fmt.Errorf("unknown backend %q", c.Medium.Backend)
	}
	switch c.Store.SizeStrategy {
	case "utf16", "bytes":
	default:
		return fmt.Errorf("unknown size strategy %q", c.Store.SizeStrategy)
	}
	if c.Cache.PruneThreshold <= 0 || c.Cache.PruneThreshold > 1 {
		return fmt.Errorf("prune threshold %v outside (0, 1]", c.Cache.PruneThreshold)
	}
	if c.Cache.EvictFraction <= 0 || c.Cache.EvictFraction > 1 {
		return fmt.Errorf("evict fraction %v outside (0, 1]", c.Cache.EvictFraction)
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("max size %d must be positive", c.Cache.MaxSize)
	}
	if c.Medium.Quota < 0 {
		return fmt.Errorf("quota %d must not be negative", c.Medium.Quota)
	}
	return nil
}

// Logger builds the slog logger described by the log settings.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
