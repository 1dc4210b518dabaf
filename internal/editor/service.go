package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/tracing"
)

// Store is the part of the durable store the editor drives.
type Store interface {
	Filter(q indexer.Query) []entry.Entry
	Fetch(id int32) (entry.Entry, bool)
	Pull() []entry.PullEntry
	PullFetch(id int32) entry.PullEntry
	Stash(ctx context.Context, en entry.Entry, restricted bool) (entry.PullEntry, error)
	Commit(ctx context.Context, id int32) (entry.PullEntry, error)
	Discard(id int32) entry.PullEntry
	Del(ctx context.Context, id int32) error
	Len() int
	Drafts() int
}

// Invalidator drops cached public query results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service executes editor commands for a session. Notifications and cache
// invalidation run after the store call has returned, never under its lock.
type Service struct {
	store   Store
	auth    *Authenticator
	feed    Notifier
	cache   Invalidator
	metrics *metrics.Metrics
}

// NewService wires the collaborators. feed, cache and m may be nil.
func NewService(store Store, auth *Authenticator, feed Notifier, cache Invalidator, m *metrics.Metrics) *Service {
	if feed == nil {
		feed = NopNotifier{}
	}
	return &Service{
		store:   store,
		auth:    auth,
		feed:    feed,
		cache:   cache,
		metrics: m,
	}
}

// List returns the visible entries for an admin, or the session's own entry
// for a limited session.
func (s *Service) List(ctx context.Context, sess Session) []entry.Entry {
	defer s.record("list", nil)
	if sess.Admin() {
		return s.store.Filter(indexer.Query{Order: entry.ByName})
	}
	id, _ := sess.Target()
	if en, ok := s.store.Fetch(id); ok && !en.Deleted {
		return []entry.Entry{en}
	}
	return []entry.Entry{}
}

// Pull returns the editor view including drafts.
func (s *Service) Pull(ctx context.Context, sess Session) []entry.PullEntry {
	defer s.record("pull", nil)
	if sess.Admin() {
		return s.store.Pull()
	}
	id, _ := sess.Target()
	if view := s.store.PullFetch(id); view != nil && !view.Content().Deleted {
		return []entry.PullEntry{view}
	}
	return []entry.PullEntry{}
}

// Put stashes en as a draft. A limited session may only target its own id
// and may not create entries. Deletion goes through Delete, so a deleted flag
// in the payload is dropped.
func (s *Service) Put(ctx context.Context, sess Session, en entry.Entry) (view entry.PullEntry, err error) {
	defer func() { s.record("put", err) }()
	en.Deleted = false
	if !sess.allows(en.ID) {
		return nil, fmt.Errorf("session %s editing entry %d: %w", sess, en.ID, apperrors.ErrDenied)
	}
	end := s.span(ctx, "store.stash", en.ID)
	view, err = s.store.Stash(ctx, en, sess.Restricted())
	end()
	if err != nil {
		return nil, err
	}
	s.publish(ctx, Change{Kind: ChangeUpdated, ID: en.ID, Entry: view})
	return view, nil
}

// Commit publishes the draft for id. Only admins commit.
func (s *Service) Commit(ctx context.Context, sess Session, id int32) (view entry.PullEntry, err error) {
	defer func() { s.record("commit", err) }()
	if !sess.Admin() {
		return nil, fmt.Errorf("session %s committing entry %d: %w", sess, id, apperrors.ErrDenied)
	}
	end := s.span(ctx, "store.commit", id)
	view, err = s.store.Commit(ctx, id)
	end()
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, fmt.Errorf("committing entry %d: %w", id, apperrors.ErrNotFound)
	}
	s.invalidate(ctx)
	s.publish(ctx, Change{Kind: ChangeUpdated, ID: id, Entry: view})
	return view, nil
}

// Discard drops the draft for id.
func (s *Service) Discard(ctx context.Context, sess Session, id int32) (view entry.PullEntry, err error) {
	defer func() { s.record("discard", err) }()
	if !sess.allows(id) {
		return nil, fmt.Errorf("session %s discarding entry %d: %w", sess, id, apperrors.ErrDenied)
	}
	view = s.store.Discard(id)
	if view == nil {
		return nil, fmt.Errorf("discarding entry %d: %w", id, apperrors.ErrNotFound)
	}
	s.publish(ctx, Change{Kind: ChangeUpdated, ID: id, Entry: view})
	return view, nil
}

// Delete tombstones id. Only admins delete.
func (s *Service) Delete(ctx context.Context, sess Session, id int32) (err error) {
	defer func() { s.record("del", err) }()
	if !sess.Admin() {
		return fmt.Errorf("session %s deleting entry %d: %w", sess, id, apperrors.ErrDenied)
	}
	end := s.span(ctx, "store.del", id)
	err = s.store.Del(ctx, id)
	end()
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	s.publish(ctx, Change{Kind: ChangeDeleted, ID: id})
	return nil
}

// GenerateKey issues a capability token for id. Only admins issue keys.
func (s *Service) GenerateKey(ctx context.Context, sess Session, id int32) (key string, err error) {
	defer func() { s.record("genKey", err) }()
	if !sess.Admin() {
		return "", fmt.Errorf("session %s issuing key for %d: %w", sess, id, apperrors.ErrDenied)
	}
	return s.auth.IssueKey(id)
}

func (s *Service) span(ctx context.Context, name string, id int32) func() {
	_, span := tracing.StartChild(ctx, name)
	span.Set("id", id)
	return span.End
}

func (s *Service) publish(ctx context.Context, c Change) {
	c.At = time.Now().UTC()
	if err := s.feed.Notify(ctx, c); err != nil {
		logger.FromContext(ctx).Warn("change notification failed", "id", c.ID, "kind", c.Kind, "error", err)
		if s.metrics != nil {
			s.metrics.ChangeFeedFailures.Inc()
		}
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.FromContext(ctx).Error("query cache invalidation failed", "error", err)
	}
}

func (s *Service) record(command string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrDenied):
		outcome = "denied"
	default:
		outcome = "error"
	}
	s.metrics.EditorCommandsTotal.WithLabelValues(command, outcome).Inc()
	s.metrics.EntriesTotal.Set(float64(s.store.Len()))
	s.metrics.DraftsPending.Set(float64(s.store.Drafts()))
}
