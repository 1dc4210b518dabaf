package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
)

// loadStash reads the draft snapshot. A missing or unreadable file yields an
// empty overlay.
func loadStash(path string, logger *slog.Logger) map[int32]entry.StashedEntry {
	stash := make(map[int32]entry.StashedEntry)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("stash snapshot unreadable, starting empty", "path", path, "error", err)
		}
		return stash
	}
	if err := json.Unmarshal(data, &stash); err != nil {
		logger.Warn("stash snapshot corrupt, starting empty", "path", path, "error", err)
		return make(map[int32]entry.StashedEntry)
	}
	for id, s := range stash {
		if s.ID != id {
			logger.Warn("dropping stash entry under mismatched key", "key", id, "id", s.ID)
			delete(stash, id)
		}
	}
	return stash
}

// writeStash replaces the snapshot atomically: the overlay is written to a
// temp file in the same directory, synced, then renamed over path. The temp
// file is removed on any failure.
func writeStash(path string, stash map[int32]entry.StashedEntry) (err error) {
	data, err := json.Marshal(stash)
	if err != nil {
		return fmt.Errorf("encoding stash: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating stash directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp stash file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing stash: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing stash file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing stash file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming stash file: %w", err)
	}
	return nil
}
