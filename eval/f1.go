// Package eval computes precision, recall and F1 for predicted spans and
// for the token-level classifiers.
package eval

import (
	"errors"
	"fmt"

	"github.com/happyhackingspace/qsample/corpus"
)

// ErrMultipleMatches is returned when a predicted span matches more than one
// gold span exactly.
var ErrMultipleMatches = errors.New("predicted span matches more than one gold span")

// Stats accumulates counts for precision and recall. The correct counts are
// fractional so partial matches can be credited.
type Stats struct {
	TrueCount      int     `json:"true"`
	PredictedCount int     `json:"predicted"`
	CorrectP       float64 `json:"correct_p"`
	CorrectR       float64 `json:"correct_r"`

	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Add merges the counts of o into s. Call Compute afterwards.
func (s *Stats) Add(o Stats) {
	s.TrueCount += o.TrueCount
	s.PredictedCount += o.PredictedCount
	s.CorrectP += o.CorrectP
	s.CorrectR += o.CorrectR
}

// Compute derives precision, recall and F1 from the counts. Precision is 1
// with no predictions and recall is 1 with nothing to find.
func (s *Stats) Compute() {
	s.Precision = 1
	if s.PredictedCount > 0 {
		s.Precision = s.CorrectP / float64(s.PredictedCount)
	}
	s.Recall = 1
	if s.TrueCount > 0 {
		s.Recall = s.CorrectR / float64(s.TrueCount)
	}
	s.F1 = 0
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("%.2f %.2f %.2f", s.Precision, s.Recall, s.F1)
}

// Spans evaluates the predicted spans with label against the gold spans
// with the same label. In partial mode each overlap is credited by the
// share of the predicted span (precision) or gold span (recall) it covers.
func Spans(docs []*corpus.Document, label string, partial bool) (Stats, error) {
	return evaluate(docs, label, partial, nil)
}

// SpansOfType is Spans restricted to spans of type t.
func SpansOfType(docs []*corpus.Document, label string, partial bool, t corpus.SpanType) (Stats, error) {
	return evaluate(docs, label, partial, &t)
}

// SpansByType runs SpansOfType for every span type.
func SpansByType(docs []*corpus.Document, label string, partial bool) (map[corpus.SpanType]Stats, error) {
	out := make(map[corpus.SpanType]Stats, 3)
	for _, t := range []corpus.SpanType{corpus.Direct, corpus.Indirect, corpus.Mixed} {
		st, err := SpansOfType(docs, label, partial, t)
		if err != nil {
			return nil, err
		}
		out[t] = st
	}
	return out, nil
}

func evaluate(docs []*corpus.Document, label string, partial bool, typ *corpus.SpanType) (Stats, error) {
	var total Stats
	for _, doc := range docs {
		st, err := document(doc, label, partial, typ)
		if err != nil {
			return Stats{}, fmt.Errorf("document %q: %w", doc.ID, err)
		}
		total.Add(st)
	}
	total.Compute()
	return total, nil
}

func document(doc *corpus.Document, label string, partial bool, typ *corpus.SpanType) (Stats, error) {
	var predicted []*corpus.Span
	if doc.Predicted != nil {
		for _, s := range doc.Predicted.Spans() {
			if s.Label == label {
				predicted = append(predicted, s)
			}
		}
	}
	var gold []*corpus.Span
	for _, s := range doc.Gold {
		if s.Label == label {
			gold = append(gold, s)
		}
	}
	ofType := func(s *corpus.Span) bool {
		return typ == nil || doc.SpanType(s) == *typ
	}

	var st Stats
	for _, g := range gold {
		if ofType(g) {
			st.TrueCount++
		}
	}

	for _, p := range predicted {
		matched, err := related(p, gold, partial)
		if err != nil {
			return Stats{}, err
		}
		if ofType(p) {
			st.PredictedCount++
			for _, g := range matched {
				if partial {
					st.CorrectP += float64(p.ComputeOverlap(g)) / float64(p.Length())
				} else {
					st.CorrectP++
				}
			}
		}
		// recall counts gold spans of the type, whatever the predicted type
		for _, g := range matched {
			if !ofType(g) {
				continue
			}
			if partial {
				st.CorrectR += float64(p.ComputeOverlap(g)) / float64(g.Length())
			} else {
				st.CorrectR++
			}
		}
	}

	if int(st.CorrectP) > st.PredictedCount || int(st.CorrectR) > st.TrueCount {
		return Stats{}, fmt.Errorf("more correct spans than counted: %.2f/%d precision, %.2f/%d recall",
			st.CorrectP, st.PredictedCount, st.CorrectR, st.TrueCount)
	}
	return st, nil
}

func related(p *corpus.Span, gold []*corpus.Span, partial bool) ([]*corpus.Span, error) {
	var out []*corpus.Span
	for _, g := range gold {
		if partial && p.Overlaps(g) || !partial && p.Equal(g) {
			out = append(out, g)
		}
	}
	if !partial && len(out) > 1 {
		return nil, fmt.Errorf("%w: %v", ErrMultipleMatches, p)
	}
	return out, nil
}

// TokenPredicate reports whether position i of doc carries a label.
type TokenPredicate func(doc *corpus.Document, i int) bool

var (
	GoldBegin      TokenPredicate = func(d *corpus.Document, i int) bool { return d.StartsGold(i) }
	GoldEnd        TokenPredicate = func(d *corpus.Document, i int) bool { return d.EndsGold(i) }
	GoldCue        TokenPredicate = func(d *corpus.Document, i int) bool { return d.Tokens[i].GoldCue }
	PredictedBegin TokenPredicate = func(d *corpus.Document, i int) bool { return d.Tokens[i].BeginScore > 0 }
	PredictedEnd   TokenPredicate = func(d *corpus.Document, i int) bool { return d.Tokens[i].EndScore > 0 }
	PredictedCue   TokenPredicate = func(d *corpus.Document, i int) bool { return d.Tokens[i].PredictedCue }
)

// Tokens evaluates a binary token classifier.
func Tokens(docs []*corpus.Document, gold, predicted TokenPredicate) Stats {
	var st Stats
	for _, doc := range docs {
		for i := range doc.Tokens {
			g, p := gold(doc, i), predicted(doc, i)
			if g {
				st.TrueCount++
			}
			if p {
				st.PredictedCount++
			}
			if g && p {
				st.CorrectP++
				st.CorrectR++
			}
		}
	}
	st.Compute()
	return st
}
