package database

import (
	"context"
	"log/slog"
	"os"

	"github.com/nao1215/pagemirror/internal/model"
)

// AssetCache exposes the assets of one project to the scheduler.
type AssetCache struct {
	db      *CacheDB
	project string
	logger  *slog.Logger
}

// NewAssetCache creates an AssetCache for project. A nil logger uses
// slog.Default().
func NewAssetCache(db *CacheDB, project string, logger *slog.Logger) *AssetCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetCache{db: db, project: project, logger: logger}
}

// Lookup returns the path rawURL was saved to by an earlier run, provided
// the file is still on disk. A stale record is removed.
func (c *AssetCache) Lookup(ctx context.Context, rawURL string) (string, bool) {
	rec, err := c.db.GetAsset(ctx, c.project, rawURL)
	if err != nil {
		c.logger.Debug("asset cache lookup failed", "url", rawURL, "error", err)
		return "", false
	}
	if rec == nil {
		return "", false
	}
	info, err := os.Stat(rec.Path)
	if err != nil || !info.Mode().IsRegular() {
		if err := c.db.DeleteAsset(ctx, c.project, rawURL); err != nil {
			c.logger.Debug("failed to drop stale asset", "url", rawURL, "error", err)
		}
		return "", false
	}
	return rec.Path, true
}

// Store records a saved asset.
func (c *AssetCache) Store(ctx context.Context, e model.Entry) error {
	return c.db.PutAsset(ctx, &AssetRecord{
		Project:    c.project,
		URL:        e.URL,
		Path:       e.Path,
		Kind:       e.Kind,
		StatusCode: e.StatusCode,
		Digest:     e.Digest,
		Bytes:      e.Bytes,
		FetchedAt:  e.Time,
	})
}
