package indexer

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer/index"
)

// Query selects entries for Filter.
type Query struct {
	Availability entry.Availability
	// Keywords switches Filter from listing to scored search when non-nil.
	// A non-nil empty slice matches nothing.
	Keywords []string
	Order    entry.Order
}

// ScoredEntry is a search hit with its accumulated relevance.
type ScoredEntry struct {
	Entry entry.Entry
	Score int64
}

// Filter lists or searches visible entries. Deleted and hidden rows never
// appear.
func (e *Engine) Filter(q Query) []entry.Entry {
	if q.Keywords == nil {
		return e.list(q)
	}
	scored := e.Search(q)
	result := make([]entry.Entry, len(scored))
	for i, s := range scored {
		result[i] = s.Entry
	}
	return result
}

func (e *Engine) list(q Query) []entry.Entry {
	result := make([]entry.Entry, 0, len(e.entries))
	for _, stored := range e.entries {
		if !visible(stored) || !q.Availability.Match(stored) {
			continue
		}
		result = append(result, stored.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if q.Order == entry.ByID {
			return result[i].ID < result[j].ID
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Search accumulates weight*count over the segments of every keyword and
// returns the ids with a positive score, best first. Keywords the segmenter
// rejects contribute nothing.
func (e *Engine) Search(q Query) []ScoredEntry {
	scores := make(map[int32]int64)
	for _, keyword := range q.Keywords {
		seq, err := e.seg.CutForSearch(keyword)
		if err != nil {
			e.logger.Debug("skipping unsegmentable keyword", "keyword", keyword, "error", err)
			continue
		}
		for seg := range seq {
			e.index.Scan(seg, func(k index.Key, count int64) {
				scores[k.ID] += k.Type.Weight() * count
			})
		}
	}

	hits := make([]ScoredEntry, 0, len(scores))
	for id, score := range scores {
		if score <= 0 {
			continue
		}
		stored, ok := e.entries[id]
		if !ok || !visible(stored) {
			continue
		}
		hits = append(hits, ScoredEntry{Entry: *stored, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := &hits[i], &hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if q.Order == entry.ByName && a.Entry.Name != b.Entry.Name {
			return a.Entry.Name < b.Entry.Name
		}
		return a.Entry.ID < b.Entry.ID
	})

	result := hits[:0]
	for _, h := range hits {
		if q.Availability.Match(&h.Entry) {
			h.Entry = h.Entry.Clone()
			result = append(result, h)
		}
	}
	return result
}

func visible(en *entry.Entry) bool {
	return !en.Deleted && !en.Hidden
}
