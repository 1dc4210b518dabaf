package index

// Type identifies which field of an entry produced a posting.
type Type uint8

const (
	Name Type = iota
	NameSeg
	Category
	Tag
)

// Weight is the relevance contributed by one occurrence of a posting.
func (t Type) Weight() int64 {
	switch t {
	case Name:
		return 10
	case Category:
		return 5
	case Tag:
		return 2
	case NameSeg:
		return 1
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case Name:
		return "name"
	case NameSeg:
		return "name_seg"
	case Category:
		return "category"
	case Tag:
		return "tag"
	default:
		return "unknown"
	}
}

// Key is the composite posting key of a bucket.
type Key struct {
	ID   int32
	Type Type
}

// Posting is one (token -> key, count) association.
type Posting struct {
	ID    int32
	Type  Type
	Count int64
}

type PostingList []Posting

// TermEntry is a token with its postings, as produced by Snapshot.
type TermEntry struct {
	Term     string
	Postings PostingList
}
