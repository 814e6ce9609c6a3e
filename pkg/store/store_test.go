package store_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/memory"
)

// flakyMedium fails the next failSets writes with failErr.
type flakyMedium struct {
	*memory.Medium
	failSets int
	failErr  error
	keysErr  error
	sets     int
}

func (f *flakyMedium) SetItem(ctx context.Context, key string, value []byte) error {
	f.sets++
	if f.failSets > 0 {
		f.failSets--
		return f.failErr
	}
	return f.Medium.SetItem(ctx, key, value)
}

func (f *flakyMedium) Keys(ctx context.Context) ([]string, error) {
	if f.keysErr != nil {
		return nil, f.keysErr
	}
	return f.Medium.Keys(ctx)
}

func TestStore_GetDefault(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.New(0))

	if got := s.Get(ctx, "missing"); got != nil {
		t.Errorf("Get(missing) = %v; want nil", got)
	}
	if got := s.Get(ctx, "missing", "fallback"); got != "fallback" {
		t.Errorf("Get(missing, fallback) = %v; want fallback", got)
	}
}

func TestStore_SetGetLoad(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.New(0))

	type profile struct {
		Handle    string `json:"handle"`
		Followers int    `json:"followers"`
	}
	if !s.Set(ctx, "profile", profile{Handle: "alice", Followers: 3}) {
		t.Fatal("Set returned false")
	}

	got, ok := s.Get(ctx, "profile").(map[string]any)
	if !ok {
		t.Fatalf("Get returned %T; want map", s.Get(ctx, "profile"))
	}
	if got["handle"] != "alice" || got["followers"] != float64(3) {
		t.Errorf("Get = %v", got)
	}

	var p profile
	if !s.Load(ctx, "profile", &p) {
		t.Fatal("Load returned false")
	}
	if p.Handle != "alice" || p.Followers != 3 {
		t.Errorf("Load = %+v", p)
	}

	var wrong []int
	if s.Load(ctx, "profile", &wrong) {
		t.Error("Load into incompatible type should report false")
	}
}

func TestStore_GetRawFallback(t *testing.T) {
	ctx := context.Background()
	m := memory.New(0)
	s := store.New(m)

	// Written by something that does not speak JSON.
	if err := m.SetItem(ctx, store.DefaultPrefix+"legacy", []byte("plain text")); err != nil {
		t.Fatal(err)
	}
	if got := s.Get(ctx, "legacy"); got != "plain text" {
		t.Errorf("Get(legacy) = %#v; want raw string", got)
	}
}

func TestStore_SetUnencodable(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.New(0))
	if s.Set(ctx, "ch", make(chan int)) {
		t.Error("Set of unencodable value should report false")
	}
	if s.Has(ctx, "ch") {
		t.Error("unencodable value was stored")
	}
}

func TestStore_NamespaceScoping(t *testing.T) {
	ctx := context.Background()
	m := memory.New(0)
	if err := m.SetItem(ctx, "other_app_token", []byte(`"secret"`)); err != nil {
		t.Fatal(err)
	}

	s := store.New(m, store.WithPrefix("app_"))
	s.Set(ctx, "a", 1)
	s.Set(ctx, "b", 2)

	keys := s.Keys(ctx)
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"a", "b"}) {
		t.Errorf("Keys() = %v; want [a b]", keys)
	}
	if !s.Has(ctx, "a") || s.Has(ctx, "other_app_token") {
		t.Error("Has is not scoped to the namespace")
	}

	if n := s.Clear(ctx); n != 2 {
		t.Errorf("Clear() = %d; want 2", n)
	}
	if _, ok, _ := m.GetItem(ctx, "other_app_token"); !ok {
		t.Error("Clear removed a key outside the namespace")
	}
	if len(s.Keys(ctx)) != 0 {
		t.Error("namespace not empty after Clear")
	}
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := store.New(memory.New(0))
	s.Set(ctx, "k", "v")
	if !s.Remove(ctx, "k") {
		t.Fatal("Remove returned false")
	}
	if s.Has(ctx, "k") {
		t.Error("key present after Remove")
	}
	if !s.Remove(ctx, "k") {
		t.Error("Remove of absent key should succeed")
	}
}

func TestStore_Size(t *testing.T) {
	ctx := context.Background()
	m := memory.New(0)
	if err := m.SetItem(ctx, "foreign", []byte("ignored")); err != nil {
		t.Fatal(err)
	}

	wide := store.New(m, store.WithPrefix("p_"))
	exact := store.New(m, store.WithPrefix("p_"), store.WithSizeFunc(store.ByteSize))

	wide.Set(ctx, "k", "é") // stored as `"é"`: 3 runes, 4 bytes

	// key "p_k" is 3 runes / 3 bytes.
	if got := wide.Size(ctx); got != (3+3)*2 {
		t.Errorf("UTF16 Size() = %d; want 12", got)
	}
	if got := exact.Size(ctx); got != 3+4 {
		t.Errorf("Byte Size() = %d; want 7", got)
	}
}

func TestStore_QuotaRecovery(t *testing.T) {
	ctx := context.Background()
	m := memory.New(0)
	if err := m.SetItem(ctx, "auth_session", []byte(`"tok"`)); err != nil {
		t.Fatal(err)
	}

	f := &flakyMedium{Medium: m, failSets: 1, failErr: fmt.Errorf("disk: %w", store.ErrQuotaExceeded)}
	s := store.New(f)

	// Seed directly so the seeding writes don't consume the injected failure.
	for _, k := range []string{"cache_timeline:a", "cache_meta_cache_timeline:a", "session"} {
		if err := m.SetItem(ctx, store.DefaultPrefix+k, []byte(`1`)); err != nil {
			t.Fatal(err)
		}
	}

	if !s.Set(ctx, "cache_profile:bob", map[string]int{"v": 1}) {
		t.Fatal("Set should succeed after quota recovery")
	}
	if f.sets != 2 {
		t.Errorf("SetItem called %d times; want exactly one retry", f.sets)
	}

	keys := s.Keys(ctx)
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"cache_profile:bob", "session"}) {
		t.Errorf("Keys() after recovery = %v", keys)
	}
	if _, ok, _ := m.GetItem(ctx, "auth_session"); !ok {
		t.Error("recovery removed a key outside the store namespace")
	}
}

func TestStore_QuotaRecoveryFails(t *testing.T) {
	ctx := context.Background()
	f := &flakyMedium{Medium: memory.New(0), failSets: 2, failErr: store.ErrQuotaExceeded}
	s := store.New(f)

	if s.Set(ctx, "cache_x:1", 1) {
		t.Error("Set should report false when the retry also fails")
	}
	if f.sets != 2 {
		t.Errorf("SetItem called %d times; want 2", f.sets)
	}
}

func TestStore_OtherWriteErrorNotRetried(t *testing.T) {
	ctx := context.Background()
	f := &flakyMedium{Medium: memory.New(0), failSets: 1, failErr: errors.New("io error")}
	s := store.New(f)

	if s.Set(ctx, "k", 1) {
		t.Error("Set should report false on a non-quota failure")
	}
	if f.sets != 1 {
		t.Errorf("SetItem called %d times; want 1", f.sets)
	}
}

func TestStore_RealQuotaRecovery(t *testing.T) {
	ctx := context.Background()
	m := memory.New(200)
	s := store.New(m)

	s.Set(ctx, "session", "keep")
	for i := range 5 {
		if !s.Set(ctx, fmt.Sprintf("cache_feed:%d", i), "0123456789") {
			t.Fatalf("seed %d failed", i)
		}
	}
	// Fill-up write: only fits once the cache sub-namespace is gone.
	big := strings.Repeat("x", 100)
	if !s.Set(ctx, "cache_feed:big", big) {
		t.Fatal("Set should succeed after clearing cache entries")
	}
	if got := s.Get(ctx, "session"); got != "keep" {
		t.Errorf("session = %v; want keep", got)
	}
	if s.Has(ctx, "cache_feed:0") {
		t.Error("old cache entries should have been cleared")
	}
}

func TestStore_KeysErrorAbsorbed(t *testing.T) {
	ctx := context.Background()
	f := &flakyMedium{Medium: memory.New(0), keysErr: errors.New("boom")}
	s := store.New(f)

	if keys := s.Keys(ctx); len(keys) != 0 {
		t.Errorf("Keys() = %v; want empty", keys)
	}
	if n := s.Clear(ctx); n != 0 {
		t.Errorf("Clear() = %d; want 0", n)
	}
	if n := s.Size(ctx); n != 0 {
		t.Errorf("Size() = %d; want 0", n)
	}
}

func TestQuota(t *testing.T) {
	ctx := context.Background()
	inner := memory.New(1 << 20)
	if err := inner.SetItem(ctx, "pre", []byte("12345")); err != nil { // 8 bytes
		t.Fatal(err)
	}

	q, err := store.Quota(ctx, inner, 20)
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}

	if err := q.SetItem(ctx, "k", []byte("0123456789")); err != nil { // 11 -> 19
		t.Fatalf("SetItem within quota: %v", err)
	}
	if err := q.SetItem(ctx, "z", []byte("1")); !errors.Is(err, store.ErrQuotaExceeded) { // 21
		t.Fatalf("SetItem over quota err = %v; want ErrQuotaExceeded", err)
	}
	if err := q.RemoveItem(ctx, "pre"); err != nil {
		t.Fatal(err)
	}
	if err := q.SetItem(ctx, "z", []byte("1")); err != nil { // 11 + 2
		t.Errorf("SetItem after RemoveItem freed space: %v", err)
	}
	// Overwrite counts only the delta: 13 - 11 + 20 = 22 > 20.
	if err := q.SetItem(ctx, "k", []byte("0123456789abcdefghi")); !errors.Is(err, store.ErrQuotaExceeded) {
		t.Errorf("oversized overwrite err = %v; want ErrQuotaExceeded", err)
	}
	if err := q.SetItem(ctx, "k", []byte("0123456789abcdefg")); err != nil { // 18 + 2 = 20
		t.Errorf("overwrite at exactly the quota: %v", err)
	}
	if got := q.Used(); got != 20 {
		t.Errorf("Used() = %d; want 20", got)
	}
	if err := q.RemoveItem(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if got := q.Used(); got != 2 {
		t.Errorf("Used() after RemoveItem = %d; want 2", got)
	}
}

func TestQuota_CountsExisting(t *testing.T) {
	ctx := context.Background()
	inner := memory.New(1 << 20)
	if err := inner.SetItem(ctx, "a", []byte("123")); err != nil { // 4 bytes
		t.Fatal(err)
	}
	if err := inner.SetItem(ctx, "bb", []byte("45")); err != nil { // 4 bytes
		t.Fatal(err)
	}

	q, err := store.Quota(ctx, inner, 100)
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if got := q.Used(); got != 8 {
		t.Errorf("Used() = %d; want 8", got)
	}

	var _ store.Medium = q
}
