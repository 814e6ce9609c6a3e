// Package cloudrun provides automatic medium selection for Cloud Run.
// Detects Cloud Run via K_SERVICE env var and tries Datastore first,
// falling back to local files if unavailable.
package cloudrun

import (
	"context"
	"log/slog"
	"os"

	"github.com/codeGROOVE-dev/quotacache/pkg/store"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/compress"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/datastore"
	"github.com/codeGROOVE-dev/quotacache/pkg/store/localfs"
)

// New creates a medium suited to the environment.
// In Cloud Run: tries Datastore, falls back to local files on error.
// Outside Cloud Run: uses local files directly, under the OS cache dir.
// quota bounds the local file medium; Datastore has no aggregate quota.
func New(ctx context.Context, cacheID string, quota int64, c ...compress.Compressor) (store.Medium, error) {
	if OnCloudRun() {
		m, err := datastore.New(ctx, cacheID, c...)
		if err == nil {
			return m, nil
		}
		slog.Warn("datastore unavailable, falling back to local files", "cache_id", cacheID, "error", err)
	}
	return localfs.New(cacheID, "", quota, c...)
}

// OnCloudRun reports whether the process runs on Cloud Run (or Knative).
func OnCloudRun() bool {
	return os.Getenv("K_SERVICE") != ""
}
