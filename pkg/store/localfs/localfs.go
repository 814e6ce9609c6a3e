// Package localfs provides a local filesystem medium for quotacache.
//
// Each key is one file, named by the SHA-256 of the key in a squid-style
// two-level layout. The medium keeps an in-memory index of key to file size,
// built at open, so enumeration and quota checks never walk the directory.
package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/compress"
)

// DefaultQuota is used when New is given a quota <= 0.
const DefaultQuota = 50 << 20

// record is the on-disk form of one key.
type record struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Medium implements store.Medium using local files.
//
//nolint:govet // fieldalignment - current layout groups related fields logically (mutex with maps it protects)
type Medium struct {
	mu          sync.Mutex
	Dir         string              // Exported for testing - directory path
	index       map[string]int64    // key -> bytes on disk
	subdirsMade map[string]bool     // Cache of created subdirectories
	compressor  compress.Compressor // Compression algorithm
	ext         string              // File extension based on compressor
	quota       int64
	used        int64
}

// New opens a file medium.
// The cacheID is used as a subdirectory name under the OS cache directory.
// If dir is provided (non-empty), it's used as the base directory instead of OS cache dir.
// quota bounds the bytes written to disk; <= 0 uses DefaultQuota.
// Optional compressor enables compression (default: no compression, plain JSON with .j extension).
func New(cacheID, dir string, quota int64, c ...compress.Compressor) (*Medium, error) {
	if cacheID == "" {
		return nil, errors.New("cacheID cannot be empty")
	}
	if strings.Contains(cacheID, "..") || strings.Contains(cacheID, "/") || strings.Contains(cacheID, "\\") {
		return nil, errors.New("invalid cacheID: contains path separators or traversal sequences")
	}
	if strings.Contains(cacheID, "\x00") {
		return nil, errors.New("invalid cacheID: contains null byte")
	}
	if quota <= 0 {
		quota = DefaultQuota
	}

	comp := compress.None()
	if len(c) > 0 && c[0] != nil {
		comp = c[0]
	}

	var fullDir string
	if dir != "" {
		fullDir = filepath.Join(dir, cacheID)
	} else {
		baseDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("get user cache dir: %w", err)
		}
		fullDir = filepath.Join(baseDir, cacheID)
	}

	if err := os.MkdirAll(fullDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	testFile := filepath.Join(fullDir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("cache dir not writable: %w", err)
	}
	_ = os.Remove(testFile) //nolint:errcheck // best-effort cleanup

	ext := comp.Extension()
	if ext == "" {
		ext = ".j"
	}

	m := &Medium{
		Dir:         fullDir,
		index:       make(map[string]int64),
		subdirsMade: make(map[string]bool),
		compressor:  comp,
		ext:         ext,
		quota:       quota,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// load builds the index from existing files, removing any that are corrupt.
func (m *Medium) load() error {
	var errs []error

	walkErr := filepath.Walk(m.Dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("walk %s: %w", path, err))
			return nil
		}
		if fi.IsDir() || filepath.Ext(fi.Name()) != m.ext {
			return nil
		}

		rec, err := m.readFile(path)
		if err != nil {
			slog.Warn("removing unreadable cache file", "path", path, "error", err)
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				errs = append(errs, fmt.Errorf("remove %s: %w", path, rmErr))
			}
			return nil
		}
		m.index[rec.Key] = fi.Size()
		m.used += fi.Size()
		return nil
	})
	if walkErr != nil {
		errs = append(errs, fmt.Errorf("walk directory: %w", walkErr))
	}
	return errors.Join(errs...)
}

// keyToFilename converts a key to a filename with squid-style directory layout.
// Hashes the key and uses first 2 characters of hex hash as subdirectory for even distribution
// (e.g., key "mykey" -> "a3/a3f2....j" or "a3/a3f2....s" with S2 compression).
func (m *Medium) keyToFilename(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(h[:2], h+m.ext)
}

// Location returns the full file path where a key is stored.
func (m *Medium) Location(key string) string {
	return filepath.Join(m.Dir, m.keyToFilename(key))
}

func (m *Medium) readFile(path string) (record, error) {
	var rec record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("read file: %w", err)
	}
	jsonData, err := m.compressor.Decode(data)
	if err != nil {
		return rec, fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(jsonData, &rec); err != nil {
		return rec, fmt.Errorf("decode file: %w", err)
	}
	return rec, nil
}

// GetItem reads key from its file. A corrupt file is removed and reported as an error.
func (m *Medium) GetItem(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[key]; !ok {
		return nil, false, nil
	}

	fn := m.Location(key)
	rec, err := m.readFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.forget(key)
			return nil, false, nil
		}
		rmErr := os.Remove(fn)
		m.forget(key)
		return nil, false, errors.Join(err, rmErr)
	}
	return rec.Value, true, nil
}

// SetItem writes key atomically via a temp file and rename.
// It fails with store.ErrQuotaExceeded when the encoded file would take the
// medium past its quota.
func (m *Medium) SetItem(_ context.Context, key string, value []byte) error {
	jsonData, err := json.Marshal(record{Key: key, Value: value, UpdatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data, err := m.compressor.Encode(jsonData)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(len(data))
	next := m.used - m.index[key] + size
	if next > m.quota {
		return fmt.Errorf("write %s: %d of %d bytes: %w", key, next, m.quota, store.ErrQuotaExceeded)
	}

	fn := m.Location(key)
	dir := filepath.Dir(fn)
	if !m.subdirsMade[dir] {
		// MkdirAll is idempotent
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create subdirectory: %w", err)
		}
		m.subdirsMade[dir] = true
	}

	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		if errors.Is(err, syscallNoSpace) {
			return fmt.Errorf("write temp file: %w: %w", err, store.ErrQuotaExceeded)
		}
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		rmErr := os.Remove(tmp)
		return errors.Join(fmt.Errorf("rename file: %w", err), rmErr)
	}

	m.used = next
	m.index[key] = size
	return nil
}

// RemoveItem deletes the file for key.
func (m *Medium) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.Location(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	m.forget(key)
	return nil
}

func (m *Medium) forget(key string) {
	m.used -= m.index[key]
	delete(m.index, key)
}

// Keys returns every indexed key.
func (m *Medium) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.index))
	for k := range m.index {
		out = append(out, k)
	}
	return out, nil
}

// Used returns the bytes currently on disk.
func (m *Medium) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Close cleans up resources.
func (*Medium) Close() error {
	// No resources to clean up for file-based persistence
	return nil
}
