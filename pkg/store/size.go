package store

import "unicode/utf8"

// SizeFunc estimates how many bytes a record occupies on the medium.
// Store.Size sums it over every namespaced record.
type SizeFunc func(key string, value []byte) int64

// wideCharBytes approximates the UTF-16 storage used by web-storage style media.
const wideCharBytes = 2

// UTF16Size estimates the record as two bytes per character of key and
// serialized value. It is the default strategy and an estimate only.
func UTF16Size(key string, value []byte) int64 {
	return int64(utf8.RuneCountInString(key)+utf8.RuneCount(value)) * wideCharBytes
}

// ByteSize counts the exact encoded length of key and value.
func ByteSize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}
