// Package corpus holds the document model shared by the sampler, the
// boundary classifiers and evaluation.
//
// Tokens live in an arena indexed by position; neighbouring tokens are
// reached with index arithmetic rather than links.
package corpus

import "slices"

// Token is one position of a document.
type Token struct {
	Position int    `json:"position"`
	Text     string `json:"text"`

	// Features are the boundary features computed upstream.
	Features []string `json:"features,omitempty"`
	// CueFeatures are boundary features derived from predicted cues.
	CueFeatures []string `json:"-"`

	GoldCue      bool `json:"cue,omitempty"`
	PredictedCue bool `json:"-"`

	BeginScore float64 `json:"-"`
	EndScore   float64 `json:"-"`
	CueScore   float64 `json:"-"`

	SampledBegin int `json:"-"`
	SampledEnd   int `json:"-"`
}

// BoundaryFeatures returns the token's features including cue-derived ones.
func (t *Token) BoundaryFeatures() []string {
	if len(t.CueFeatures) == 0 {
		return t.Features
	}
	return append(slices.Clip(t.Features), t.CueFeatures...)
}

// Document is an ordered sequence of tokens with gold and predicted spans.
type Document struct {
	ID     string   `json:"id"`
	URL    string   `json:"url,omitempty"`
	Tokens []*Token `json:"tokens"`
	Gold   []*Span  `json:"gold,omitempty"`

	Predicted *SpanSet `json:"-"`
}

// NewDocument creates a document from tokens, renumbering positions.
func NewDocument(id string, tokens []*Token) *Document {
	d := &Document{ID: id, Tokens: tokens}
	d.Init()
	return d
}

// Init normalizes token positions and allocates the predicted set.
// Call it after decoding a document.
func (d *Document) Init() {
	for i, t := range d.Tokens {
		t.Position = i
	}
	if d.Predicted == nil {
		d.Predicted = NewSpanSet()
	}
}

// Len returns the number of tokens.
func (d *Document) Len() int {
	return len(d.Tokens)
}

// Token returns the token at position i, or nil when out of range.
func (d *Document) Token(i int) *Token {
	if i < 0 || i >= len(d.Tokens) {
		return nil
	}
	return d.Tokens[i]
}

// AddGold appends a gold span after range-checking it.
func (d *Document) AddGold(begin, end int, label string) error {
	s, err := NewSpan(d, begin, end, label)
	if err != nil {
		return err
	}
	d.Gold = append(d.Gold, s)
	return nil
}

// StartsGold reports whether a gold span begins at position i.
func (d *Document) StartsGold(i int) bool {
	for _, s := range d.Gold {
		if s.Begin == i {
			return true
		}
	}
	return false
}

// EndsGold reports whether a gold span ends at position i.
func (d *Document) EndsGold(i int) bool {
	for _, s := range d.Gold {
		if s.End == i {
			return true
		}
	}
	return false
}

// InPredicted reports whether position i is covered by a predicted span.
func (d *Document) InPredicted(i int) bool {
	return d.Predicted.Covers(i)
}

// MatchingGold returns every gold span with the positions of s.
func (d *Document) MatchingGold(s *Span) []*Span {
	var out []*Span
	for _, g := range d.Gold {
		if g.Equal(s) {
			out = append(out, g)
		}
	}
	return out
}

// OverlappingGold returns every gold span overlapping s.
func (d *Document) OverlappingGold(s *Span) []*Span {
	var out []*Span
	for _, g := range d.Gold {
		if g.Overlaps(s) {
			out = append(out, g)
		}
	}
	return out
}

// ResetPredicted clears the predicted span set.
func (d *Document) ResetPredicted() {
	if d.Predicted == nil {
		d.Predicted = NewSpanSet()
		return
	}
	d.Predicted.Clear()
}

// ResetScores zeroes the per-token scores and sampling counters.
func (d *Document) ResetScores() {
	for _, t := range d.Tokens {
		t.BeginScore, t.EndScore, t.CueScore = 0, 0, 0
		t.SampledBegin, t.SampledEnd = 0, 0
	}
}
