package eval

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/happyhackingspace/qsample/corpus"
)

// Report bundles the span and classifier scores of one document set.
type Report struct {
	Strict  Stats `json:"strict"`
	Partial Stats `json:"partial"`

	StrictByType  map[corpus.SpanType]Stats `json:"strict_by_type"`
	PartialByType map[corpus.SpanType]Stats `json:"partial_by_type"`

	Cue   Stats `json:"cue"`
	Begin Stats `json:"begin"`
	End   Stats `json:"end"`
}

// NewReport evaluates the content spans and boundary classifiers of docs.
func NewReport(docs []*corpus.Document) (*Report, error) {
	var (
		r   Report
		err error
	)
	if r.Strict, err = Spans(docs, corpus.ContentLabel, false); err != nil {
		return nil, err
	}
	if r.Partial, err = Spans(docs, corpus.ContentLabel, true); err != nil {
		return nil, err
	}
	if r.StrictByType, err = SpansByType(docs, corpus.ContentLabel, false); err != nil {
		return nil, err
	}
	if r.PartialByType, err = SpansByType(docs, corpus.ContentLabel, true); err != nil {
		return nil, err
	}
	r.Cue = Tokens(docs, GoldCue, PredictedCue)
	r.Begin = Tokens(docs, GoldBegin, PredictedBegin)
	r.End = Tokens(docs, GoldEnd, PredictedEnd)
	return &r, nil
}

// Write prints the report as an aligned table.
func (r *Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tP\tR\tF1\tgold\tpredicted")
	row := func(name string, s Stats) {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%d\t%d\n",
			name, s.Precision, s.Recall, s.F1, s.TrueCount, s.PredictedCount)
	}
	row("strict", r.Strict)
	for _, t := range []corpus.SpanType{corpus.Direct, corpus.Indirect, corpus.Mixed} {
		row("strict "+string(t), r.StrictByType[t])
	}
	row("partial", r.Partial)
	for _, t := range []corpus.SpanType{corpus.Direct, corpus.Indirect, corpus.Mixed} {
		row("partial "+string(t), r.PartialByType[t])
	}
	row("cue", r.Cue)
	row("begin", r.Begin)
	row("end", r.End)
	return tw.Flush()
}

// Add merges the counts of o into r and recomputes every score.
func (r *Report) Add(o *Report) {
	merge := func(dst *Stats, src Stats) {
		dst.Add(src)
		dst.Compute()
	}
	merge(&r.Strict, o.Strict)
	merge(&r.Partial, o.Partial)
	merge(&r.Cue, o.Cue)
	merge(&r.Begin, o.Begin)
	merge(&r.End, o.End)

	if r.StrictByType == nil {
		r.StrictByType = make(map[corpus.SpanType]Stats)
	}
	if r.PartialByType == nil {
		r.PartialByType = make(map[corpus.SpanType]Stats)
	}
	for t, s := range o.StrictByType {
		acc := r.StrictByType[t]
		merge(&acc, s)
		r.StrictByType[t] = acc
	}
	for t, s := range o.PartialByType {
		acc := r.PartialByType[t]
		merge(&acc, s)
		r.PartialByType[t] = acc
	}
}
