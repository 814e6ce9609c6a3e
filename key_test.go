package quotacache

import "testing"

type query struct {
	User  string `json:"user"`
	Limit int    `json:"limit"`
}

func TestGenerateKey(t *testing.T) {
	tests := []struct {
		name string
		ns   string
		id   any
		want string
	}{
		{"string verbatim", "profile", "alice", "cache_profile:alice"},
		{"string with json chars", "search", `{"q":1}`, `cache_search:{"q":1}`},
		{"int", "user", 42, "cache_user:42"},
		{"bool", "flag", true, "cache_flag:true"},
		{"nil", "empty", nil, "cache_empty:<nil>"},
		{"map sorted", "feed", map[string]any{"z": 1, "a": "x"}, `cache_feed:{"a":"x","z":1}`},
		{"nested map sorted", "feed", map[string]any{"b": map[string]int{"y": 2, "x": 1}, "a": []int{3, 1}},
			`cache_feed:{"a":[3,1],"b":{"x":1,"y":2}}`},
		{"struct fields sorted", "q", query{User: "bob", Limit: 20}, `cache_q:{"limit":20,"user":"bob"}`},
		{"pointer to struct", "q", &query{User: "bob", Limit: 20}, `cache_q:{"limit":20,"user":"bob"}`},
		{"slice", "ids", []int{3, 2, 1}, "cache_ids:[3,2,1]"},
		{"html not escaped", "q", map[string]string{"t": "<a&b>"}, `cache_q:{"t":"<a&b>"}`},
		{"large number exact", "n", map[string]int64{"id": 9007199254740993}, `cache_n:{"id":9007199254740993}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateKey(tt.ns, tt.id); got != tt.want {
				t.Errorf("GenerateKey(%q, %v) = %s; want %s", tt.ns, tt.id, got, tt.want)
			}
		})
	}
}

func TestGenerateKey_OrderIndependent(t *testing.T) {
	a := map[string]any{"page": 2, "sort": "new", "filter": map[string]any{"lang": "en", "media": true}}
	b := map[string]any{"filter": map[string]any{"media": true, "lang": "en"}, "sort": "new", "page": 2}

	for range 20 {
		if ka, kb := GenerateKey("timeline", a), GenerateKey("timeline", b); ka != kb {
			t.Fatalf("keys differ: %s vs %s", ka, kb)
		}
	}

	var m Manager
	if got, want := m.GenerateKey("timeline", a), GenerateKey("timeline", a); got != want {
		t.Errorf("Manager.GenerateKey = %s; want %s", got, want)
	}
}

func TestGenerateKey_UnencodableFallsBack(t *testing.T) {
	ch := make(chan int)
	got := GenerateKey("x", []chan int{ch})
	if got == "" || got[:8] != "cache_x:" {
		t.Errorf("GenerateKey = %q", got)
	}
}
