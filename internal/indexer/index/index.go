// Package index implements the reference-counted inverted index: a mapping
// from normalised token to a mapping from Key to occurrence count. Counts let
// the same token arrive through several fields of one entry; removal
// decrements and prunes zero counts and empty buckets.
//
// Index is not safe for concurrent mutation; the owning store serialises
// writers.
package index

import (
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Index struct {
	buckets map[string]map[Key]int64
}

func New() *Index {
	return &Index{
		buckets: make(map[string]map[Key]int64),
	}
}

// Normalize maps a token to its bucket name: NFKC composed and case folded.
func Normalize(token string) string {
	return cases.Fold().String(norm.NFKC.String(token))
}

// Add increments the count of k in the bucket for token. Empty tokens are
// not indexed.
func (x *Index) Add(token string, k Key) {
	term := Normalize(token)
	if term == "" {
		return
	}
	bucket, ok := x.buckets[term]
	if !ok {
		bucket = make(map[Key]int64)
		x.buckets[term] = bucket
	}
	bucket[k]++
}

// Remove decrements the count of k in the bucket for token. It reports false
// when there was nothing to remove.
func (x *Index) Remove(token string, k Key) bool {
	term := Normalize(token)
	bucket, ok := x.buckets[term]
	if !ok {
		return false
	}
	count, ok := bucket[k]
	if !ok {
		return false
	}
	if count <= 1 {
		delete(bucket, k)
		if len(bucket) == 0 {
			delete(x.buckets, term)
		}
		return true
	}
	bucket[k] = count - 1
	return true
}

// Count returns the reference count of k under token.
func (x *Index) Count(token string, k Key) int64 {
	return x.buckets[Normalize(token)][k]
}

// Scan calls fn for every posting in the bucket of token.
func (x *Index) Scan(token string, fn func(k Key, count int64)) {
	for k, count := range x.buckets[Normalize(token)] {
		fn(k, count)
	}
}

// Bucket returns the postings of token ordered by id then type.
func (x *Index) Bucket(token string) PostingList {
	bucket, ok := x.buckets[Normalize(token)]
	if !ok {
		return nil
	}
	result := make(PostingList, 0, len(bucket))
	for k, count := range bucket {
		result = append(result, Posting{ID: k.ID, Type: k.Type, Count: count})
	}
	sortPostings(result)
	return result
}

// Terms returns the number of non-empty buckets.
func (x *Index) Terms() int {
	return len(x.buckets)
}

// Snapshot returns every bucket ordered by term.
func (x *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(x.buckets))
	for term, bucket := range x.buckets {
		postings := make(PostingList, 0, len(bucket))
		for k, count := range bucket {
			postings = append(postings, Posting{ID: k.ID, Type: k.Type, Count: count})
		}
		sortPostings(postings)
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func sortPostings(p PostingList) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].ID != p[j].ID {
			return p[i].ID < p[j].ID
		}
		return p[i].Type < p[j].Type
	})
}
