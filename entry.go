package quotacache

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	// KeyPrefix starts every cache entry key.
	KeyPrefix = "cache_"

	// MetaPrefix starts the best-effort access metadata record kept beside
	// each entry, under MetaPrefix + entry key. Since entry keys start with
	// KeyPrefix, a metadata key always starts with MetaPrefix + KeyPrefix.
	MetaPrefix = "cache_meta_"
)

// entry is the persisted form of one cache entry.
type entry struct {
	Data        json.RawMessage `json:"data"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	CreatedAt   time.Time       `json:"createdAt"`
	AccessedAt  time.Time       `json:"accessedAt"`
	AccessCount int64           `json:"accessCount"`
}

// expired reports whether e is stale at now. An entry is fresh only strictly
// before its expiry.
func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// lastUsed is the recency used for eviction ranking.
func (e *entry) lastUsed() time.Time {
	if e.AccessedAt.IsZero() {
		return e.CreatedAt
	}
	return e.AccessedAt
}

// meta is the access record kept under MetaPrefix + key.
type meta struct {
	LastAccess time.Time `json:"lastAccess"`
	Key        string    `json:"key"`
}

func metaKey(key string) string {
	return MetaPrefix + key
}

// isMetaKey reports whether key is MetaPrefix + an entry key. An entry in a
// namespace such as "meta_drafts" is not metadata.
func isMetaKey(key string) bool {
	return strings.HasPrefix(key, MetaPrefix+KeyPrefix)
}
