// Package model composes perceptrons into the span-level model and the
// token-level boundary and cue classifiers.
package model

import (
	"fmt"
	"io"
	"sort"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/perceptron"
)

// SpanModel scores a span as the sum of a begin-token score, an end-token
// score and a span-level score.
type SpanModel struct {
	Begin  *perceptron.Perceptron `json:"begin"`
	End    *perceptron.Perceptron `json:"end"`
	Higher *perceptron.Perceptron `json:"higher"`
}

// NewSpanModel creates a span model with fresh perceptrons.
func NewSpanModel() *SpanModel {
	return &SpanModel{
		Begin:  perceptron.New(),
		End:    perceptron.New(),
		Higher: perceptron.New(),
	}
}

// Score returns the span score. The span's Features must already be set.
func (m *SpanModel) Score(doc *corpus.Document, s *corpus.Span, avg bool) float64 {
	return m.Begin.Score(doc.Tokens[s.Begin].BoundaryFeatures(), avg) +
		m.End.Score(doc.Tokens[s.End].BoundaryFeatures(), avg) +
		m.Higher.Score(s.Features, avg)
}

// Train nudges all three perceptrons towards (positive) or away from s.
// Margins are the caller's concern.
func (m *SpanModel) Train(doc *corpus.Document, s *corpus.Span, positive bool, rate float64) {
	if !positive {
		rate = -rate
	}
	m.Begin.Update(doc.Tokens[s.Begin].BoundaryFeatures(), rate)
	m.End.Update(doc.Tokens[s.End].BoundaryFeatures(), rate)
	m.Higher.Update(s.Features, rate)
}

// Dump writes the averaged weights of all three perceptrons, one per line,
// prefixed with BEGIN-, END- or HIGHER- and sorted by feature.
func (m *SpanModel) Dump(w io.Writer) error {
	parts := []struct {
		prefix string
		p      *perceptron.Perceptron
	}{
		{"BEGIN-", m.Begin},
		{"END-", m.End},
		{"HIGHER-", m.Higher},
	}
	for _, part := range parts {
		type entry struct {
			f   string
			avg float64
		}
		var entries []entry
		part.p.Weights.Features(func(f string, _, avg float64) {
			entries = append(entries, entry{f, avg})
		})
		sort.Slice(entries, func(i, j int) bool { return entries[i].f < entries[j].f })
		for _, e := range entries {
			if _, err := fmt.Fprintf(w, "%s%s\t%g\n", part.prefix, e.f, e.avg); err != nil {
				return err
			}
		}
	}
	return nil
}
