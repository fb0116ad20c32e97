package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/javanhut/contentsync/internal/journal"
	"github.com/javanhut/contentsync/internal/storage"
	"github.com/javanhut/contentsync/internal/updater"
)

// workspace bundles the local content store and its journal.
type workspace struct {
	store   *storage.FileStore
	blocks  *storage.Blocks
	journal *journal.DB
}

func openWorkspace() (*workspace, error) {
	store, err := storage.NewFileStore(cfg.Storage.Root, log)
	if err != nil {
		return nil, err
	}
	db, err := journal.Open(cfg.JournalPath(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &workspace{
		store:   store,
		blocks:  storage.NewBlocks(store, log),
		journal: db,
	}, nil
}

func (w *workspace) Close() error {
	return w.journal.Close()
}

func (w *workspace) newManager(callbacks updater.Callbacks) *updater.Manager {
	fetcher := updater.NewHTTPFetcher(
		time.Duration(cfg.HTTP.ConnectTimeout),
		time.Duration(cfg.HTTP.ReadTimeout),
	)
	return updater.New(fetcher, w.store, updater.Options{
		BaseURL:          cfg.Server.BaseURL,
		ManifestPath:     cfg.Server.ManifestPath,
		ManifestAttempts: cfg.Retry.ManifestAttempts,
		BlockAttempts:    cfg.Retry.BlockAttempts,
		Backoff:          time.Duration(cfg.Retry.Backoff),
		Callbacks:        callbacks,
		Observer:         w.journal,
		Logger:           log,
		Reserved:         reservedPaths(),
	})
}

// reservedPaths returns the journal's store-relative path when it lives
// inside the content root.
func reservedPaths() []string {
	rel, err := filepath.Rel(absPath(cfg.Storage.Root), absPath(cfg.JournalPath()))
	if err != nil {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return nil
	}
	return []string{rel}
}

// touch stamps a journal meta key, logging rather than failing.
func (w *workspace) touch(key string) {
	if err := w.journal.Touch(key); err != nil {
		log.Warn("failed to update journal", "key", key, "error", err)
	}
}

func (w *workspace) lastTime(key string) (time.Time, bool) {
	v, err := w.journal.Meta(key)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
