package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer/segmenter"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/store/entrylog"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
)

func storeConfig(dir string) config.StoreConfig {
	return config.StoreConfig{
		DataDir:   dir,
		Backend:   config.BackendSQLite,
		LogFile:   "entries.sqlite",
		StashFile: "stash.json",
	}
}

func openAt(t *testing.T, dir string) *Store {
	t.Helper()
	cfg := storeConfig(dir)
	s, err := Open(context.Background(), cfg, entrylog.SQLiteAt(filepath.Join(dir, cfg.LogFile)), segmenter.New())
	require.NoError(t, err)
	return s
}

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := openAt(t, dir)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func sample(id int32, name string, tags ...string) entry.Entry {
	if tags == nil {
		tags = []string{}
	}
	return entry.Entry{
		ID:       id,
		Name:     name,
		NameEng:  name + " Club",
		Category: "Misc",
		Tags:     tags,
		Files:    []string{},
		Creation: "2019-03-01",
	}
}

func seed(t *testing.T, s *Store, n int32) {
	t.Helper()
	for id := int32(1); id <= n; id++ {
		require.NoError(t, s.Put(context.Background(), sample(id, fmt.Sprintf("Org%d", id))))
	}
}

func filterIDs(s *Store, q indexer.Query) []int32 {
	var ids []int32
	for _, en := range s.Filter(q) {
		ids = append(ids, en.ID)
	}
	return ids
}

func TestPut_ReplayedAfterReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openAt(t, dir)
	require.NoError(t, s.Put(ctx, sample(1, "Chess", "board")))
	require.NoError(t, s.Put(ctx, sample(2, "Poker", "cards")))
	require.NoError(t, s.Put(ctx, sample(2, "Bridge", "cards")))
	require.NoError(t, s.Del(ctx, 1))
	require.NoError(t, s.Close())

	reopened := openAt(t, dir)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Len())
	assert.Equal(t, int32(2), reopened.HighestID())
	assert.Equal(t, []int32{2}, filterIDs(reopened, indexer.Query{Keywords: []string{"cards"}}))
	assert.Empty(t, filterIDs(reopened, indexer.Query{Keywords: []string{"board"}}))
	assert.Empty(t, filterIDs(reopened, indexer.Query{Keywords: []string{"Poker"}}))

	tomb, ok := reopened.Fetch(1)
	require.True(t, ok)
	assert.True(t, tomb.Deleted)
	err := reopened.Put(ctx, sample(1, "Chess"))
	require.ErrorIs(t, err, apperrors.ErrDeletedEntry)
}

func TestDelThenPut_ReturnsDeletedEntry(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 2)

	require.NoError(t, s.Del(ctx, 2))
	err := s.Put(ctx, sample(2, "Again"))
	require.ErrorIs(t, err, apperrors.ErrDeletedEntry)
	require.ErrorIs(t, s.Del(ctx, 7), apperrors.ErrNotFound)
}

func TestStash_IdenticalEditClearsDraft(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 3)

	edited := sample(2, "Renamed")
	view, err := s.Stash(ctx, edited, false)
	require.NoError(t, err)
	require.IsType(t, entry.Stashed{}, view)
	assert.Equal(t, "Renamed", view.Content().Name)

	committed, _ := s.Fetch(2)
	view, err = s.Stash(ctx, committed, false)
	require.NoError(t, err)
	assert.IsType(t, entry.Unmodified{}, view)
	assert.IsType(t, entry.Unmodified{}, s.PullFetch(2))

	stored, _ := s.Fetch(2)
	assert.Equal(t, "Org2", stored.Name, "drafts never touch the committed row")
}

func TestStash_EditStaysInOverlayUntilCommit(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 2)

	_, err := s.Stash(ctx, sample(1, "Astronomy", "stars"), false)
	require.NoError(t, err)
	assert.Empty(t, filterIDs(s, indexer.Query{Keywords: []string{"stars"}}))

	view, err := s.Commit(ctx, 1)
	require.NoError(t, err)
	assert.IsType(t, entry.Unmodified{}, view)
	assert.Equal(t, []int32{1}, filterIDs(s, indexer.Query{Keywords: []string{"stars"}}))

	view, err = s.Commit(ctx, 1)
	require.NoError(t, err, "commit without a draft is a no-op")
	assert.Equal(t, "Astronomy", view.Content().Name)
}

func TestStash_NewIDIsReservedHidden(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 3)

	next := sample(s.HighestID()+1, "Debate", "speech")
	view, err := s.Stash(ctx, next, false)
	require.NoError(t, err)
	assert.IsType(t, entry.Stashed{}, view)

	assert.Equal(t, 4, s.Len())
	assert.NotContains(t, filterIDs(s, indexer.Query{}), int32(4))
	assert.Empty(t, filterIDs(s, indexer.Query{Keywords: []string{"speech"}}))
	placeholder, ok := s.Fetch(4)
	require.True(t, ok)
	assert.True(t, placeholder.Hidden)

	_, err = s.Commit(ctx, 4)
	require.NoError(t, err)
	assert.Contains(t, filterIDs(s, indexer.Query{}), int32(4))
	assert.Equal(t, []int32{4}, filterIDs(s, indexer.Query{Keywords: []string{"speech"}}))
}

func TestStash_DiscardedNewIDStaysHidden(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 1)

	_, err := s.Stash(ctx, sample(2, "Ghost"), false)
	require.NoError(t, err)
	view := s.Discard(2)
	require.IsType(t, entry.Unmodified{}, view)
	assert.True(t, view.Content().Hidden)
	assert.Equal(t, []int32{1}, filterIDs(s, indexer.Query{}))
	assert.Nil(t, s.Discard(99))
}

func TestStash_RestrictedNewIDDenied(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 2)
	before := s.Pull()

	_, err := s.Stash(ctx, sample(3, "Intruder"), true)
	require.ErrorIs(t, err, apperrors.ErrDenied)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, before, s.Pull())
	assert.Nil(t, s.PullFetch(3))
}

func TestStash_TombstoneRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 2)
	require.NoError(t, s.Del(ctx, 2))

	_, err := s.Stash(ctx, sample(2, "Revived"), false)
	require.ErrorIs(t, err, apperrors.ErrDeletedEntry)
}

func TestPut_DeletedFlagRejected(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openAt(t, dir)
	seed(t, s, 2)

	flagged := sample(2, "Org2")
	flagged.Deleted = true
	require.ErrorIs(t, s.Put(ctx, flagged), apperrors.ErrInvalidInput)
	ghost := sample(3, "Ghost")
	ghost.Deleted = true
	require.ErrorIs(t, s.Put(ctx, ghost), apperrors.ErrInvalidInput)

	stored, _ := s.Fetch(2)
	assert.False(t, stored.Deleted)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int32{2}, filterIDs(s, indexer.Query{Keywords: []string{"Org2"}}))
	assert.Empty(t, filterIDs(s, indexer.Query{Keywords: []string{"Ghost"}}))

	require.NoError(t, s.Del(ctx, 2))
	assert.Empty(t, s.engine.Index().Bucket("Org2"))
	terms := s.engine.Index().Terms()
	require.NoError(t, s.Close())

	reopened := openAt(t, dir)
	defer reopened.Close()
	assert.Equal(t, terms, reopened.engine.Index().Terms(), "replay rebuilds the same index")
	assert.Empty(t, reopened.engine.Index().Bucket("Org2"))
}

func TestStash_DeletedFlagRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 2)

	flagged := sample(2, "Org2")
	flagged.Deleted = true
	_, err := s.Stash(ctx, flagged, true)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, s.Drafts())

	flagged.ID = 3
	_, err = s.Stash(ctx, flagged, false)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 2, s.Len(), "no placeholder reserved")
}

func TestStash_RejectsIDsWithoutSlot(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 2)

	for _, id := range []int32{0, -4} {
		_, err := s.Stash(ctx, sample(id, "Nowhere"), false)
		require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}

	// Rows 1, 2 and 4 leave a gap at 3 below Len.
	require.NoError(t, s.Put(ctx, sample(4, "Org4")))
	_, err := s.Stash(ctx, sample(3, "Gap"), false)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Zero(t, s.Drafts())
	assert.Nil(t, s.PullFetch(3))

	_, err = s.Stash(ctx, sample(4, "Org4 renamed"), false)
	require.NoError(t, err, "an existing row above Len is edited, not re-reserved")
	stored, _ := s.Fetch(4)
	assert.False(t, stored.Hidden)
}

func TestDel_DropsDraft(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 2)
	_, err := s.Stash(ctx, sample(1, "Edited"), false)
	require.NoError(t, err)

	require.NoError(t, s.Del(ctx, 1))
	view := s.PullFetch(1)
	require.IsType(t, entry.Unmodified{}, view)
	assert.True(t, view.Content().Deleted)
	for _, p := range s.Pull() {
		assert.NotEqual(t, int32(1), p.EntryID())
	}
}

func TestPull_ResolvesDraftsInIDOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 3)
	_, err := s.Stash(ctx, sample(2, "Draft"), false)
	require.NoError(t, err)

	pulled := s.Pull()
	require.Len(t, pulled, 3)
	assert.Equal(t, int32(1), pulled[0].EntryID())
	assert.IsType(t, entry.Unmodified{}, pulled[0])
	assert.IsType(t, entry.Stashed{}, pulled[1])
	assert.Equal(t, "Draft", pulled[1].Content().Name)
	assert.IsType(t, entry.Unmodified{}, pulled[2])
}

func TestClose_PersistsDrafts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openAt(t, dir)
	seed(t, s, 2)
	_, err := s.Stash(ctx, sample(2, "Pending", "wip"), false)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, "stash.json.tmp"))
	assert.True(t, os.IsNotExist(err))

	reopened := openAt(t, dir)
	defer reopened.Close()
	view := reopened.PullFetch(2)
	require.IsType(t, entry.Stashed{}, view)
	assert.Equal(t, []string{"wip"}, view.Content().Tags)
	assert.NotZero(t, view.(entry.Stashed).Timestamp)
}

func TestOpen_CorruptStashStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := openAt(t, dir)
	seed(t, s, 1)
	require.NoError(t, s.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stash.json"), []byte("{not json"), 0644))

	reopened := openAt(t, dir)
	defer reopened.Close()
	assert.IsType(t, entry.Unmodified{}, reopened.PullFetch(1))
}

func TestOpen_DirectoryLocked(t *testing.T) {
	s, dir := openTemp(t)
	_ = s

	cfg := storeConfig(dir)
	_, err := Open(context.Background(), cfg, entrylog.SQLiteAt(filepath.Join(dir, cfg.LogFile)), segmenter.New())
	require.Error(t, err)
}

type failingLog struct {
	entrylog.Log
	failPuts bool
}

func (l *failingLog) Put(ctx context.Context, id int32, data []byte) error {
	if l.failPuts {
		return errors.New("disk full")
	}
	return l.Log.Put(ctx, id, data)
}

func TestPut_RollsBackOnLogFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := storeConfig(dir)
	flaky := &failingLog{}
	open := func(ctx context.Context) (entrylog.Log, error) {
		inner, err := entrylog.OpenSQLite(filepath.Join(dir, cfg.LogFile))
		flaky.Log = inner
		return flaky, err
	}
	s, err := Open(ctx, cfg, open, segmenter.New())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put(ctx, sample(1, "Chess", "board")))

	flaky.failPuts = true
	err = s.Put(ctx, sample(1, "Poker", "cards"))
	require.ErrorIs(t, err, apperrors.ErrSystem)
	stored, _ := s.Fetch(1)
	assert.Equal(t, "Chess", stored.Name)
	assert.Equal(t, []int32{1}, filterIDs(s, indexer.Query{Keywords: []string{"board"}}))
	assert.Empty(t, filterIDs(s, indexer.Query{Keywords: []string{"cards"}}))

	err = s.Put(ctx, sample(2, "New"))
	require.ErrorIs(t, err, apperrors.ErrSystem)
	assert.Equal(t, 1, s.Len())

	require.ErrorIs(t, s.Del(ctx, 1), apperrors.ErrSystem)
	stored, _ = s.Fetch(1)
	assert.False(t, stored.Deleted)

	_, err = s.Stash(ctx, sample(1, "Draft"), false)
	require.NoError(t, err)
	_, err = s.Commit(ctx, 1)
	require.ErrorIs(t, err, apperrors.ErrSystem)
	assert.IsType(t, entry.Stashed{}, s.PullFetch(1), "failed commit keeps the draft")
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	seed(t, s, 10)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				id := int32(w*2 + 1)
				_, err := s.Stash(ctx, sample(id, fmt.Sprintf("W%d-%d", w, i)), false)
				assert.NoError(t, err)
				_, err = s.Commit(ctx, id)
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.Filter(indexer.Query{Keywords: []string{"Club"}})
				_ = s.Pull()
				_ = s.Len()
			}
		}()
	}
	wg.Wait()

	for w := 0; w < 4; w++ {
		id := int32(w*2 + 1)
		stored, _ := s.Fetch(id)
		assert.Equal(t, fmt.Sprintf("W%d-19", w), stored.Name)
		assert.Contains(t, filterIDs(s, indexer.Query{Keywords: []string{stored.Name}}), id)
	}
}

func TestWriteStash_FailedRenameRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stash.json")
	// A non-empty directory at path makes the final rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(path, "occupied"), 0o755))

	drafts := map[int32]entry.StashedEntry{1: entry.NewStashed(sample(1, "Draft"))}
	err := writeStash(path, drafts)
	require.ErrorContains(t, err, "renaming stash file")
	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "temp file left behind: %v", statErr)

	ok := filepath.Join(dir, "ok.json")
	require.NoError(t, writeStash(ok, drafts))
	_, statErr = os.Stat(ok + ".tmp")
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	assert.Equal(t, drafts[1].Entry.Name, loadStash(ok, slog.Default())[1].Name)
}
