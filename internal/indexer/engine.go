package indexer

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
)

// Segmenter splits text into search segments. Implementations must be
// deterministic and safe for concurrent readers.
type Segmenter interface {
	CutForSearch(text string) (iter.Seq[string], error)
}

// Engine owns the canonical entry table and the inverted index built from it.
// It performs no locking; the Store serialises writers against readers.
type Engine struct {
	entries map[int32]*entry.Entry
	index   *index.Index
	seg     Segmenter
	logger  *slog.Logger
}

func NewEngine(seg Segmenter) *Engine {
	return &Engine{
		entries: make(map[int32]*entry.Entry),
		index:   index.New(),
		seg:     seg,
		logger:  slog.Default().With("component", "index-engine"),
	}
}

// Len counts every row, tombstones and hidden placeholders included.
func (e *Engine) Len() int {
	return len(e.entries)
}

// HighestID returns the largest id in the table, or 0 when it is empty.
func (e *Engine) HighestID() int32 {
	var highest int32
	for id := range e.entries {
		if id > highest {
			highest = id
		}
	}
	return highest
}

// Fetch returns a copy of the row regardless of its deleted or hidden state.
func (e *Engine) Fetch(id int32) (entry.Entry, bool) {
	stored, ok := e.entries[id]
	if !ok {
		return entry.Entry{}, false
	}
	return stored.Clone(), true
}

// Matches reports whether candidate is field-for-field identical to the
// stored row, comparing tags as a set.
func (e *Engine) Matches(candidate entry.Entry) bool {
	stored, ok := e.entries[candidate.ID]
	if !ok {
		return false
	}
	candidate = candidate.Clone()
	candidate.NormalizeTags()
	return stored.Equal(&candidate)
}

// Index exposes the inverted index for inspection.
func (e *Engine) Index() *index.Index {
	return e.index
}

// MemLoad stores a tombstone row without touching the index.
func (e *Engine) MemLoad(en entry.Entry) {
	stored := en.Clone()
	stored.NormalizeTags()
	e.entries[stored.ID] = &stored
}

// MemPut inserts or updates an entry and maintains the index incrementally.
// It returns the previous row (nil for a new id) and the serialised new row.
// On error neither the table nor the index is modified. Tombstones only come
// from MemDel, so an entry already flagged deleted is rejected.
func (e *Engine) MemPut(en entry.Entry) (*entry.Entry, []byte, error) {
	next := en.Clone()
	next.NormalizeTags()
	id := next.ID
	if next.Deleted {
		return nil, nil, fmt.Errorf("putting entry %d flagged deleted: %w", id, apperrors.ErrInvalidInput)
	}

	row, err := json.Marshal(&next)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding entry %d: %w", id, apperrors.ErrSystem)
	}

	original, exists := e.entries[id]
	if !exists {
		keys, err := e.keysOf(&next)
		if err != nil {
			return nil, nil, err
		}
		e.applyKeys(id, keys, true)
		e.entries[id] = &next
		e.logger.Debug("entry indexed", "id", id, "segments", len(keys.nameSegs)+len(keys.nameEngSegs))
		return nil, row, nil
	}

	if original.Deleted {
		return nil, nil, fmt.Errorf("updating entry %d: %w", id, apperrors.ErrDeletedEntry)
	}

	// Segment every changed name before mutating anything.
	var oldName, newName, oldNameEng, newNameEng []string
	if next.Name != original.Name {
		if oldName, err = e.segments(original.Name); err != nil {
			return nil, nil, err
		}
		if newName, err = e.segments(next.Name); err != nil {
			return nil, nil, err
		}
	}
	if next.NameEng != original.NameEng {
		if oldNameEng, err = e.segments(original.NameEng); err != nil {
			return nil, nil, err
		}
		if newNameEng, err = e.segments(next.NameEng); err != nil {
			return nil, nil, err
		}
	}

	if next.Name != original.Name {
		e.swapName(id, original.Name, next.Name, oldName, newName)
	}
	if next.NameEng != original.NameEng {
		e.swapName(id, original.NameEng, next.NameEng, oldNameEng, newNameEng)
	}
	if next.Category != original.Category {
		e.index.Remove(original.Category, index.Key{ID: id, Type: index.Category})
		e.index.Add(next.Category, index.Key{ID: id, Type: index.Category})
	}
	e.mergeTags(id, original.Tags, next.Tags)

	prev := original.Clone()
	e.entries[id] = &next
	e.logger.Debug("entry updated", "id", id)
	return &prev, row, nil
}

// MemDel tombstones an entry, strips its index presence and returns the
// previous row along with the serialised tombstone.
func (e *Engine) MemDel(id int32) (entry.Entry, []byte, error) {
	stored, ok := e.entries[id]
	if !ok {
		return entry.Entry{}, nil, fmt.Errorf("deleting entry %d: %w", id, apperrors.ErrNotFound)
	}
	if stored.Deleted {
		return entry.Entry{}, nil, fmt.Errorf("deleting entry %d: %w", id, apperrors.ErrDeletedEntry)
	}
	keys, err := e.keysOf(stored)
	if err != nil {
		return entry.Entry{}, nil, err
	}
	tombstone := stored.Clone()
	tombstone.Deleted = true
	row, err := json.Marshal(&tombstone)
	if err != nil {
		return entry.Entry{}, nil, fmt.Errorf("encoding tombstone %d: %w", id, apperrors.ErrSystem)
	}

	e.applyKeys(id, keys, false)
	prev := *stored
	e.entries[id] = &tombstone
	e.logger.Debug("entry deleted", "id", id)
	return prev, row, nil
}

// Restore replaces the row for id with prev, or drops the row when prev is
// nil, and rebuilds the id's index presence to match. It undoes a MemPut or
// MemDel whose persistence failed.
func (e *Engine) Restore(id int32, prev *entry.Entry) {
	if current, ok := e.entries[id]; ok && !current.Deleted {
		if keys, err := e.keysOf(current); err == nil {
			e.applyKeys(id, keys, false)
		}
	}
	if prev == nil {
		delete(e.entries, id)
		return
	}
	restored := prev.Clone()
	if !restored.Deleted {
		if keys, err := e.keysOf(&restored); err == nil {
			e.applyKeys(id, keys, true)
		}
	}
	e.entries[id] = &restored
	e.logger.Warn("entry restored after failed write", "id", id)
}

// Live returns copies of every non-deleted row, hidden placeholders included,
// ordered by id.
func (e *Engine) Live() []entry.Entry {
	result := make([]entry.Entry, 0, len(e.entries))
	for _, stored := range e.entries {
		if stored.Deleted {
			continue
		}
		result = append(result, stored.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

type fieldKeys struct {
	name        string
	nameEng     string
	nameSegs    []string
	nameEngSegs []string
	category    string
	tags        []string
}

func (e *Engine) keysOf(en *entry.Entry) (fieldKeys, error) {
	nameSegs, err := e.segments(en.Name)
	if err != nil {
		return fieldKeys{}, err
	}
	nameEngSegs, err := e.segments(en.NameEng)
	if err != nil {
		return fieldKeys{}, err
	}
	return fieldKeys{
		name:        en.Name,
		nameEng:     en.NameEng,
		nameSegs:    nameSegs,
		nameEngSegs: nameEngSegs,
		category:    en.Category,
		tags:        en.Tags,
	}, nil
}

func (e *Engine) applyKeys(id int32, k fieldKeys, add bool) {
	op := e.index.Add
	if !add {
		op = func(token string, key index.Key) { e.index.Remove(token, key) }
	}
	op(k.name, index.Key{ID: id, Type: index.Name})
	op(k.nameEng, index.Key{ID: id, Type: index.Name})
	for _, seg := range k.nameSegs {
		op(seg, index.Key{ID: id, Type: index.NameSeg})
	}
	for _, seg := range k.nameEngSegs {
		op(seg, index.Key{ID: id, Type: index.NameSeg})
	}
	op(k.category, index.Key{ID: id, Type: index.Category})
	for _, tag := range k.tags {
		op(tag, index.Key{ID: id, Type: index.Tag})
	}
}

func (e *Engine) swapName(id int32, oldName, newName string, oldSegs, newSegs []string) {
	e.index.Remove(oldName, index.Key{ID: id, Type: index.Name})
	e.index.Add(newName, index.Key{ID: id, Type: index.Name})
	for _, seg := range oldSegs {
		e.index.Remove(seg, index.Key{ID: id, Type: index.NameSeg})
	}
	for _, seg := range newSegs {
		e.index.Add(seg, index.Key{ID: id, Type: index.NameSeg})
	}
}

// mergeTags walks both sorted tag sets once, touching only tags that appear
// in exactly one of them.
func (e *Engine) mergeTags(id int32, original, next []string) {
	key := index.Key{ID: id, Type: index.Tag}
	i, j := 0, 0
	for i < len(original) && j < len(next) {
		switch {
		case original[i] == next[j]:
			i++
			j++
		case original[i] < next[j]:
			e.index.Remove(original[i], key)
			i++
		default:
			e.index.Add(next[j], key)
			j++
		}
	}
	for ; i < len(original); i++ {
		e.index.Remove(original[i], key)
	}
	for ; j < len(next); j++ {
		e.index.Add(next[j], key)
	}
}

func (e *Engine) segments(text string) ([]string, error) {
	seq, err := e.seg.CutForSearch(text)
	if err != nil {
		return nil, fmt.Errorf("segmenting %q: %w", text, apperrors.ErrInvalidString)
	}
	segs := make([]string, 0, 8)
	for s := range seq {
		segs = append(segs, s)
	}
	return segs, nil
}
