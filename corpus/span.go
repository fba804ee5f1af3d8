package corpus

import (
	"errors"
	"fmt"
)

// ErrSpanOutOfRange is returned when a span's bounds fall outside the document.
var ErrSpanOutOfRange = errors.New("span out of range")

// ContentLabel is the label of quotation content spans.
const ContentLabel = "content"

// Key identifies a span by position. Labels are not part of identity.
type Key struct {
	Begin int
	End   int
}

// Span is a closed token interval [Begin, End] over one document.
type Span struct {
	Begin    int      `json:"begin"`
	End      int      `json:"end"`
	Label    string   `json:"label"`
	Score    float64  `json:"score"`
	Features []string `json:"-"`
}

// NewSpan creates a span over doc. Bounds are never clamped.
func NewSpan(doc *Document, begin, end int, label string) (*Span, error) {
	n := doc.Len()
	if begin < 0 || begin >= n || end < 0 || end >= n || begin > end {
		return nil, fmt.Errorf("%w: [%d,%d] in document %q of length %d", ErrSpanOutOfRange, begin, end, doc.ID, n)
	}
	return &Span{Begin: begin, End: end, Label: label}, nil
}

// Key returns the position key of the span.
func (s *Span) Key() Key {
	return Key{Begin: s.Begin, End: s.End}
}

// Equal reports whether both spans cover the same positions.
func (s *Span) Equal(o *Span) bool {
	return s.Begin == o.Begin && s.End == o.End
}

// Matches is an alias of Equal used by evaluation code.
func (s *Span) Matches(o *Span) bool {
	return s.Equal(o)
}

// SemiMatches reports whether either boundary is shared.
func (s *Span) SemiMatches(o *Span) bool {
	return s.Begin == o.Begin || s.End == o.End
}

// Overlaps reports whether the two intervals share at least one token.
func (s *Span) Overlaps(o *Span) bool {
	return s.Begin <= o.End && o.Begin <= s.End
}

// Contains reports whether o lies entirely within s.
func (s *Span) Contains(o *Span) bool {
	return s.Begin <= o.Begin && o.End <= s.End
}

// ContainsPosition reports whether position i lies within s.
func (s *Span) ContainsPosition(i int) bool {
	return s.Begin <= i && i <= s.End
}

// Length returns the number of tokens covered.
func (s *Span) Length() int {
	return s.End - s.Begin + 1
}

// ComputeOverlap returns the number of tokens shared by s and o.
func (s *Span) ComputeOverlap(o *Span) int {
	return max(0, min(s.End, o.End)-max(s.Begin, o.Begin)+1)
}

func (s *Span) String() string {
	return fmt.Sprintf("%s[%d,%d]", s.Label, s.Begin, s.End)
}
