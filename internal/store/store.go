// Package store wraps the index engine with the durable entry log and the
// draft overlay. Every exported method is safe for concurrent use: readers
// share one RWMutex, mutations hold it exclusively for the whole call,
// including the durable write.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/store/entrylog"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
)

type Store struct {
	mu        sync.RWMutex
	engine    *indexer.Engine
	log       entrylog.Log
	stash     map[int32]entry.StashedEntry
	stashPath string
	dirLock   *flock.Flock
	closed    bool
	logger    *slog.Logger
}

// Open locks cfg.DataDir, opens the entry log and rebuilds the index by
// replaying every row in id order. The store is not visible to any caller
// until replay has finished.
func Open(ctx context.Context, cfg config.StoreConfig, open entrylog.Opener, seg indexer.Segmenter) (*Store, error) {
	logger := slog.Default().With("component", "store")
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dirLock, err := acquireDirLock(cfg.DataDir, cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	log, err := open(ctx)
	if err != nil {
		dirLock.Unlock()
		return nil, fmt.Errorf("opening entry log: %w", err)
	}

	s := &Store{
		engine:    indexer.NewEngine(seg),
		log:       log,
		stashPath: filepath.Join(cfg.DataDir, cfg.StashFile),
		dirLock:   dirLock,
		logger:    logger,
	}
	s.stash = loadStash(s.stashPath, logger)

	if err := s.replay(ctx); err != nil {
		log.Close()
		dirLock.Unlock()
		return nil, err
	}
	for id := range s.stash {
		if current, ok := s.engine.Fetch(id); !ok || current.Deleted {
			logger.Warn("dropping stash entry without a live row", "id", id)
			delete(s.stash, id)
		}
	}
	logger.Info("store opened",
		"entries", s.engine.Len(),
		"terms", s.engine.Index().Terms(),
		"drafts", len(s.stash),
	)
	return s, nil
}

func (s *Store) replay(ctx context.Context) error {
	var loaded, tombstones int
	err := s.log.Iterate(ctx, func(id int32, data []byte) error {
		var en entry.Entry
		if err := json.Unmarshal(data, &en); err != nil {
			return fmt.Errorf("decoding entry log row %d: %w", id, err)
		}
		if en.ID != id {
			return fmt.Errorf("entry log row %d holds entry %d", id, en.ID)
		}
		if en.Deleted {
			s.engine.MemLoad(en)
			tombstones++
			return nil
		}
		if _, _, err := s.engine.MemPut(en); err != nil {
			return fmt.Errorf("replaying entry %d: %w", id, err)
		}
		loaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("replaying entry log: %w", err)
	}
	s.logger.Debug("entry log replayed", "active", loaded, "tombstones", tombstones)
	return nil
}

// Filter lists or searches the visible entries.
func (s *Store) Filter(q indexer.Query) []entry.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Filter(q)
}

// Fetch returns the committed row for id whatever its state. Callers apply
// their own visibility policy.
func (s *Store) Fetch(id int32) (entry.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Fetch(id)
}

func (s *Store) HighestID() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.HighestID()
}

// Len counts every row, tombstones and hidden placeholders included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Len()
}

// Drafts counts the ids with a pending draft.
func (s *Store) Drafts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stash)
}

// Put applies en to the index and persists it.
func (s *Store) Put(ctx context.Context, en entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, en)
}

// put rolls the engine back if the durable write fails, so memory never runs
// ahead of the log.
func (s *Store) put(ctx context.Context, en entry.Entry) error {
	prev, row, err := s.engine.MemPut(en)
	if err != nil {
		return err
	}
	if err := s.log.Put(ctx, en.ID, row); err != nil {
		s.engine.Restore(en.ID, prev)
		s.logger.Error("entry log write failed", "id", en.ID, "error", err)
		return fmt.Errorf("persisting entry %d: %w: %v", en.ID, apperrors.ErrSystem, err)
	}
	return nil
}

// Del tombstones id and drops any draft pending for it.
func (s *Store) Del(ctx context.Context, id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, row, err := s.engine.MemDel(id)
	if err != nil {
		return err
	}
	if err := s.log.Put(ctx, id, row); err != nil {
		s.engine.Restore(id, &prev)
		s.logger.Error("entry log write failed", "id", id, "error", err)
		return fmt.Errorf("persisting tombstone %d: %w: %v", id, apperrors.ErrSystem, err)
	}
	delete(s.stash, id)
	return nil
}

// Stash records en as a draft and returns the resulting editor view.
//
// An id beyond Len with no row is new: restricted callers are denied,
// otherwise a hidden placeholder is persisted at once to reserve the id and en
// becomes its draft. An edit identical to the committed row clears any draft.
// Anything else replaces the draft for that id. Ids that are not positive, or
// that fall in a gap below Len, are rejected.
func (s *Store) Stash(ctx context.Context, en entry.Entry, restricted bool) (entry.PullEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := en.ID
	if id <= 0 {
		return nil, fmt.Errorf("stashing entry %d: %w", id, apperrors.ErrInvalidInput)
	}
	if en.Deleted {
		return nil, fmt.Errorf("stashing entry %d flagged deleted: %w", id, apperrors.ErrInvalidInput)
	}

	current, exists := s.engine.Fetch(id)
	if !exists {
		if int(id) <= s.engine.Len() {
			return nil, fmt.Errorf("stashing entry %d: %w", id, apperrors.ErrNotFound)
		}
		if restricted {
			return nil, fmt.Errorf("creating entry %d: %w", id, apperrors.ErrDenied)
		}
		placeholder := en.Clone()
		placeholder.Hidden = true
		if err := s.put(ctx, placeholder); err != nil {
			return nil, err
		}
		draft := entry.NewStashed(en.Clone())
		s.stash[id] = draft
		s.logger.Debug("new entry reserved", "id", id)
		return entry.Stashed{StashedEntry: draft}, nil
	}

	if current.Deleted {
		return nil, fmt.Errorf("stashing entry %d: %w", id, apperrors.ErrDeletedEntry)
	}
	if s.engine.Matches(en) {
		delete(s.stash, id)
		return entry.Unmodified{Entry: current}, nil
	}
	draft := entry.NewStashed(en.Clone())
	s.stash[id] = draft
	return entry.Stashed{StashedEntry: draft}, nil
}

// Commit applies the draft for id. Without a draft it does nothing. If the
// write fails the draft is kept.
func (s *Store) Commit(ctx context.Context, id int32) (entry.PullEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.stash[id]
	if !ok {
		return s.pullFetch(id), nil
	}
	delete(s.stash, id)
	if err := s.put(ctx, draft.Entry); err != nil {
		s.stash[id] = draft
		return nil, err
	}
	s.logger.Debug("draft committed", "id", id)
	return s.pullFetch(id), nil
}

// Discard drops the draft for id, if any, and returns the committed view.
// A discarded new-id placeholder stays hidden.
func (s *Store) Discard(id int32) entry.PullEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stash, id)
	return s.pullFetch(id)
}

// Pull resolves every non-deleted id, hidden placeholders included, to its
// draft or committed row, ordered by id.
func (s *Store) Pull() []entry.PullEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live := s.engine.Live()
	result := make([]entry.PullEntry, 0, len(live))
	for _, en := range live {
		if draft, ok := s.stash[en.ID]; ok {
			result = append(result, entry.Stashed{StashedEntry: cloneStashed(draft)})
			continue
		}
		result = append(result, entry.Unmodified{Entry: en})
	}
	return result
}

// PullFetch resolves a single id. It returns nil when the id has neither a
// row nor a draft.
func (s *Store) PullFetch(id int32) entry.PullEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pullFetch(id)
}

func (s *Store) pullFetch(id int32) entry.PullEntry {
	if draft, ok := s.stash[id]; ok {
		return entry.Stashed{StashedEntry: cloneStashed(draft)}
	}
	if en, ok := s.engine.Fetch(id); ok {
		return entry.Unmodified{Entry: en}
	}
	return nil
}

// Close snapshots the draft overlay, closes the log and releases the data
// directory. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := writeStash(s.stashPath, s.stash); err != nil {
		errs = append(errs, fmt.Errorf("saving stash: %w", err))
	}
	if err := s.log.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing entry log: %w", err))
	}
	if err := s.dirLock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlocking data directory: %w", err))
	}
	s.logger.Info("store closed", "drafts", len(s.stash))
	return errors.Join(errs...)
}

func cloneStashed(s entry.StashedEntry) entry.StashedEntry {
	return entry.StashedEntry{Entry: s.Entry.Clone(), Timestamp: s.Timestamp}
}
