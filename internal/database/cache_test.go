package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nao1215/pagemirror/internal/model"
)

func TestAssetCache(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	saved := filepath.Join(dir, "a.css")
	if err := os.WriteFile(saved, []byte("body{}"), 0600); err != nil {
		t.Fatal(err)
	}

	cache := NewAssetCache(db, "example", nil)
	other := NewAssetCache(db, "other", nil)

	if _, ok := cache.Lookup(ctx, "https://example.com/a.css"); ok {
		t.Fatal("expected miss before Store")
	}

	entry := model.Entry{
		URL:    "https://example.com/a.css",
		Path:   saved,
		Kind:   "css",
		Status: model.StatusSaved,
		Bytes:  6,
	}
	if err := cache.Store(ctx, entry); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	path, ok := cache.Lookup(ctx, entry.URL)
	if !ok || path != saved {
		t.Errorf("expected hit at %q, got %q, %v", saved, path, ok)
	}
	if _, ok := other.Lookup(ctx, entry.URL); ok {
		t.Error("expected miss for another project")
	}

	t.Run("missing file is a miss and drops the record", func(t *testing.T) {
		gone := model.Entry{URL: "https://example.com/gone.png", Path: filepath.Join(dir, "gone.png"), Kind: "generic"}
		if err := cache.Store(ctx, gone); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
		if _, ok := cache.Lookup(ctx, gone.URL); ok {
			t.Error("expected miss for a file that is not on disk")
		}
		rec, err := db.GetAsset(ctx, "example", gone.URL)
		if err != nil || rec != nil {
			t.Errorf("expected stale record to be removed, got %v, %v", rec, err)
		}
	})
}
