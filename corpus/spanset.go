package corpus

import "sort"

// SpanSet is a set of spans keyed by position.
type SpanSet struct {
	spans map[Key]*Span
}

// NewSpanSet creates an empty set.
func NewSpanSet() *SpanSet {
	return &SpanSet{spans: make(map[Key]*Span)}
}

// Add inserts s. It returns false if a span with the same positions is present.
func (ss *SpanSet) Add(s *Span) bool {
	k := s.Key()
	if _, ok := ss.spans[k]; ok {
		return false
	}
	ss.spans[k] = s
	return true
}

// Remove deletes the span at the positions of s and reports whether it existed.
func (ss *SpanSet) Remove(s *Span) bool {
	k := s.Key()
	if _, ok := ss.spans[k]; !ok {
		return false
	}
	delete(ss.spans, k)
	return true
}

// Contains reports whether a span with the positions of s is present.
func (ss *SpanSet) Contains(s *Span) bool {
	_, ok := ss.spans[s.Key()]
	return ok
}

// Get returns the stored span for k.
func (ss *SpanSet) Get(k Key) (*Span, bool) {
	s, ok := ss.spans[k]
	return s, ok
}

// Len returns the number of spans.
func (ss *SpanSet) Len() int {
	return len(ss.spans)
}

// Clear removes all spans.
func (ss *SpanSet) Clear() {
	clear(ss.spans)
}

// Spans returns a snapshot ordered by begin, then end.
func (ss *SpanSet) Spans() []*Span {
	out := make([]*Span, 0, len(ss.spans))
	for _, s := range ss.spans {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Begin != out[j].Begin {
			return out[i].Begin < out[j].Begin
		}
		return out[i].End < out[j].End
	})
	return out
}

// Overlapping returns the spans that overlap s, in position order.
func (ss *SpanSet) Overlapping(s *Span) []*Span {
	var out []*Span
	for _, o := range ss.Spans() {
		if o.Overlaps(s) {
			out = append(out, o)
		}
	}
	return out
}

// Covers reports whether any span contains position i.
func (ss *SpanSet) Covers(i int) bool {
	for _, s := range ss.spans {
		if s.ContainsPosition(i) {
			return true
		}
	}
	return false
}

// AnyBeginsAt reports whether some span begins at position i.
func (ss *SpanSet) AnyBeginsAt(i int) bool {
	for _, s := range ss.spans {
		if s.Begin == i {
			return true
		}
	}
	return false
}

// AnyEndsAt reports whether some span ends at position i.
func (ss *SpanSet) AnyEndsAt(i int) bool {
	for _, s := range ss.spans {
		if s.End == i {
			return true
		}
	}
	return false
}
