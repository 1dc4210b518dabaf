// Package entry defines the directory record types shared by the index
// engine, the durable store and the editor surface.
package entry

import (
	"slices"
	"strings"
	"time"
)

// Entry is one directory record. ID is assigned by the importer or editor and
// never changes; a deleted entry keeps its row as a tombstone.
type Entry struct {
	ID          int32    `json:"id"`
	Name        string   `json:"name"`
	NameEng     string   `json:"name_eng"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Desc        string   `json:"desc"`
	DescEng     string   `json:"desc_eng"`
	Files       []string `json:"files"`
	Icon        *string  `json:"icon"`
	Creation    string   `json:"creation"`
	Disbandment *string  `json:"disbandment"`
	Deleted     bool     `json:"deleted,omitempty"`
	Hidden      bool     `json:"hidden,omitempty"`
}

// Available reports whether the organization has no disbandment date.
func (e *Entry) Available() bool {
	return e.Disbandment == nil
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	c := e
	c.Tags = slices.Clone(e.Tags)
	c.Files = slices.Clone(e.Files)
	if e.Icon != nil {
		icon := *e.Icon
		c.Icon = &icon
	}
	if e.Disbandment != nil {
		d := *e.Disbandment
		c.Disbandment = &d
	}
	return c
}

// Equal compares every field, including tombstone and visibility flags.
func (e *Entry) Equal(o *Entry) bool {
	return e.ID == o.ID &&
		e.Name == o.Name &&
		e.NameEng == o.NameEng &&
		e.Category == o.Category &&
		slices.Equal(e.Tags, o.Tags) &&
		e.Desc == o.Desc &&
		e.DescEng == o.DescEng &&
		slices.Equal(e.Files, o.Files) &&
		optionalEqual(e.Icon, o.Icon) &&
		e.Creation == o.Creation &&
		optionalEqual(e.Disbandment, o.Disbandment) &&
		e.Deleted == o.Deleted &&
		e.Hidden == o.Hidden
}

// NormalizeTags sorts the tag set and drops duplicates in place.
func (e *Entry) NormalizeTags() {
	if e.Tags == nil {
		e.Tags = []string{}
		return
	}
	slices.Sort(e.Tags)
	e.Tags = slices.Compact(e.Tags)
}

func optionalEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RawEntry is the import row shape: tags as one space-separated string and no id.
type RawEntry struct {
	Name        string  `json:"name"`
	NameEng     string  `json:"name_eng"`
	Category    string  `json:"category"`
	Tags        string  `json:"tags"`
	Desc        string  `json:"desc"`
	DescEng     string  `json:"desc_eng"`
	Creation    string  `json:"creation"`
	Disbandment *string `json:"disbandment"`
}

// Extend turns the raw row into an Entry with the given id.
func (r RawEntry) Extend(id int32) Entry {
	tags := []string{}
	if trimmed := strings.TrimSpace(r.Tags); trimmed != "" {
		tags = strings.Fields(trimmed)
	}
	return Entry{
		ID:          id,
		Name:        r.Name,
		NameEng:     r.NameEng,
		Category:    r.Category,
		Tags:        tags,
		Desc:        r.Desc,
		DescEng:     r.DescEng,
		Files:       []string{},
		Creation:    r.Creation,
		Disbandment: r.Disbandment,
	}
}

// StashedEntry is a pending edit for one id. Timestamp is milliseconds since
// the Unix epoch at the time the draft was recorded.
type StashedEntry struct {
	Entry
	Timestamp uint64 `json:"timestamp"`
}

// NewStashed wraps e with the current time.
func NewStashed(e Entry) StashedEntry {
	return StashedEntry{
		Entry:     e,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

// Availability filters listings and searches by disbandment state.
type Availability int

const (
	AnyAvailability Availability = iota
	Available
	Disbanded
)

// Match reports whether e passes the filter.
func (a Availability) Match(e *Entry) bool {
	switch a {
	case Available:
		return e.Disbandment == nil
	case Disbanded:
		return e.Disbandment != nil
	default:
		return true
	}
}

// ParseAvailability maps the public path segment to an Availability.
func ParseAvailability(s string) (Availability, bool) {
	switch s {
	case "available":
		return Available, true
	case "disbanded":
		return Disbanded, true
	case "all", "":
		return AnyAvailability, true
	default:
		return AnyAvailability, false
	}
}

// Order selects the tie-break and listing order of Filter results.
type Order int

const (
	// ByName orders listings by name; searches break score ties by name.
	ByName Order = iota
	// ByID orders listings by id; searches break score ties by id.
	ByID
)
