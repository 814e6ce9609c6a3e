package quotacache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// GenerateKey builds the cache key for identifier within namespace:
// KeyPrefix + namespace + ":" + identifier.
//
// Strings are used verbatim. Maps, slices, arrays and structs (or pointers
// to them) are encoded as canonical JSON with object keys sorted at every
// depth, so two values that differ only in key order share a cache key.
// Anything else is formatted with fmt.Sprint.
func GenerateKey(namespace string, identifier any) string {
	return KeyPrefix + namespace + ":" + identifierString(identifier)
}

func identifierString(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	if !structured(id) {
		return fmt.Sprint(id)
	}
	s, err := canonicalJSON(id)
	if err != nil {
		return fmt.Sprint(id)
	}
	return s
}

func structured(v any) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	default:
		return false
	}
}

// canonicalJSON re-encodes v through a generic tree; encoding/json writes map
// keys in sorted order, which fixes struct field and map ordering alike.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode identifier: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return "", fmt.Errorf("decode identifier: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return "", fmt.Errorf("encode identifier: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
