package entry

import "encoding/json"

// PullEntry is the editor-facing view of one id: the draft if one exists,
// otherwise the committed row. Implementations are Stashed and Unmodified.
type PullEntry interface {
	EntryID() int32
	Content() Entry
	isPullEntry()
}

// Stashed is a PullEntry backed by a pending draft.
type Stashed struct {
	StashedEntry
}

// Unmodified is a PullEntry backed by the committed row.
type Unmodified struct {
	Entry
}

func (s Stashed) EntryID() int32    { return s.ID }
func (s Stashed) Content() Entry    { return s.Entry }
func (Stashed) isPullEntry()        {}
func (u Unmodified) EntryID() int32 { return u.ID }
func (u Unmodified) Content() Entry { return u.Entry }
func (Unmodified) isPullEntry()     {}

// MarshalJSON flattens the draft and tags it with "type":"Stashed".
func (s Stashed) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		StashedEntry
	}{"Stashed", s.StashedEntry})
}

// MarshalJSON flattens the row and tags it with "type":"Unmodified".
func (u Unmodified) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Entry
	}{"Unmodified", u.Entry})
}
