// Package segmenter splits bilingual text into search segments. Latin-script
// words are emitted whole; runs of CJK characters are emitted as single
// characters, overlapping bigrams and, when longer than two characters, the
// whole run. Every segment is a substring of the input.
package segmenter

import (
	"errors"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidText is returned for input that cannot be segmented: embedded NUL
// bytes or invalid UTF-8.
var ErrInvalidText = errors.New("text contains NUL or invalid UTF-8")

// Segmenter is safe for concurrent use and deterministic for identical input.
type Segmenter struct{}

// New returns a Segmenter.
func New() *Segmenter {
	return &Segmenter{}
}

// CutForSearch validates text and returns a lazy sequence of its segments.
func (s *Segmenter) CutForSearch(text string) (iter.Seq[string], error) {
	if strings.IndexByte(text, 0) >= 0 || !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	return func(yield func(string) bool) {
		i := 0
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			switch {
			case isIdeographic(r):
				end := scan(text, i, isIdeographic)
				if !cutIdeographic(text[i:end], yield) {
					return
				}
				i = end
			case isWordRune(r):
				end := scan(text, i, isWordRune)
				if !yield(text[i:end]) {
					return
				}
				i = end
			default:
				i += size
			}
		}
	}, nil
}

// Segments collects CutForSearch into a slice.
func (s *Segmenter) Segments(text string) ([]string, error) {
	seq, err := s.CutForSearch(text)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, 8)
	for seg := range seq {
		out = append(out, seg)
	}
	return out, nil
}

// cutIdeographic emits unigrams, bigrams and the whole run.
func cutIdeographic(run string, yield func(string) bool) bool {
	offsets := make([]int, 0, len(run)/3+1)
	for off := range run {
		offsets = append(offsets, off)
	}
	offsets = append(offsets, len(run))
	n := len(offsets) - 1
	for k := 0; k < n; k++ {
		if !yield(run[offsets[k]:offsets[k+1]]) {
			return false
		}
	}
	for k := 0; k+2 <= n; k++ {
		if !yield(run[offsets[k]:offsets[k+2]]) {
			return false
		}
	}
	if n > 2 {
		return yield(run)
	}
	return true
}

func scan(text string, start int, class func(rune) bool) int {
	i := start
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !class(r) {
			break
		}
		i += size
	}
	return i
}

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

func isWordRune(r rune) bool {
	if isIdeographic(r) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}
