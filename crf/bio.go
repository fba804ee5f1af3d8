package crf

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/happyhackingspace/qsample/corpus"
)

// BIO tags.
const (
	Begin   = "B"
	Inside  = "I"
	Outside = "O"
)

// biasAttribute is active at every position.
const biasAttribute = "BIAS"

// Attributes returns the CRF attributes of every token of doc.
func Attributes(doc *corpus.Document) [][]string {
	out := make([][]string, doc.Len())
	for i, t := range doc.Tokens {
		out[i] = append(slices.Clip(t.BoundaryFeatures()), biasAttribute)
	}
	return out
}

// EncodeBIO returns the tagged sequence of doc's gold content spans. A span
// overlapping an earlier one is dropped.
func EncodeBIO(doc *corpus.Document) Sequence {
	labels := make([]string, doc.Len())
	for i := range labels {
		labels[i] = Outside
	}
	gold := slices.Clone(doc.Gold)
	slices.SortStableFunc(gold, func(a, b *corpus.Span) int { return a.Begin - b.Begin })
	for _, s := range gold {
		if s.Label != corpus.ContentLabel || labels[s.Begin] != Outside || labels[s.End] != Outside {
			continue
		}
		labels[s.Begin] = Begin
		for i := s.Begin + 1; i <= s.End; i++ {
			labels[i] = Inside
		}
	}
	return Sequence{Attributes: Attributes(doc), Labels: labels}
}

// DecodeBIO turns labels back into content spans. An I that does not follow
// B or I opens a new span.
func DecodeBIO(doc *corpus.Document, labels []string) ([]*corpus.Span, error) {
	if len(labels) != doc.Len() {
		return nil, fmt.Errorf("decode %d labels for %d tokens", len(labels), doc.Len())
	}
	var spans []*corpus.Span
	begin := -1
	closeSpan := func(end int) error {
		if begin < 0 {
			return nil
		}
		s, err := corpus.NewSpan(doc, begin, end, corpus.ContentLabel)
		if err != nil {
			return err
		}
		spans = append(spans, s)
		begin = -1
		return nil
	}
	for i, l := range labels {
		switch l {
		case Begin:
			if err := closeSpan(i - 1); err != nil {
				return nil, err
			}
			begin = i
		case Inside:
			if begin < 0 {
				begin = i
			}
		default:
			if err := closeSpan(i - 1); err != nil {
				return nil, err
			}
		}
	}
	if err := closeSpan(len(labels) - 1); err != nil {
		return nil, err
	}
	return spans, nil
}

// Tagger predicts content spans with a BIO-tagging CRF.
type Tagger struct {
	Model *Model `json:"model"`
}

// TrainTagger trains a tagger on the gold spans of docs.
func TrainTagger(docs []*corpus.Document, config TrainerConfig) (*Tagger, error) {
	seqs := make([]Sequence, 0, len(docs))
	for _, doc := range docs {
		if doc.Len() > 0 {
			seqs = append(seqs, EncodeBIO(doc))
		}
	}
	m, err := Train(seqs, config, Outside, Begin, Inside)
	if err != nil {
		return nil, err
	}
	slog.Debug("crf tagger trained", "sequences", len(seqs), "attributes", m.Attributes.Size())
	return &Tagger{Model: m}, nil
}

// Predict replaces the predicted spans of every document.
func (t *Tagger) Predict(docs []*corpus.Document) error {
	for _, doc := range docs {
		doc.ResetPredicted()
		if doc.Len() == 0 {
			continue
		}
		spans, err := DecodeBIO(doc, t.Model.Predict(Attributes(doc)))
		if err != nil {
			return fmt.Errorf("document %q: %w", doc.ID, err)
		}
		for _, s := range spans {
			doc.Predicted.Add(s)
		}
	}
	return nil
}
