package eval

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyhackingspace/qsample/corpus"
)

func newDoc(texts ...string) *corpus.Document {
	tokens := make([]*corpus.Token, len(texts))
	for i, s := range texts {
		tokens[i] = &corpus.Token{Text: s}
	}
	return corpus.NewDocument("doc", tokens)
}

func plainDoc(n int) *corpus.Document {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("w%d", i)
	}
	return newDoc(texts...)
}

func predict(t *testing.T, doc *corpus.Document, begin, end int) {
	t.Helper()
	s, err := corpus.NewSpan(doc, begin, end, corpus.ContentLabel)
	require.NoError(t, err)
	doc.Predicted.Add(s)
}

func TestStatsCompute(t *testing.T) {
	tests := []struct {
		name  string
		stats Stats
		p, r  float64
		f1    float64
	}{
		{"empty", Stats{}, 1, 1, 1},
		{"nothing predicted", Stats{TrueCount: 4}, 1, 0, 0},
		{"nothing gold", Stats{PredictedCount: 2}, 0, 1, 0},
		{"half", Stats{TrueCount: 4, PredictedCount: 2, CorrectP: 1, CorrectR: 1}, 0.5, 0.25, 1.0 / 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.stats
			s.Compute()
			assert.InDelta(t, tt.p, s.Precision, 1e-9)
			assert.InDelta(t, tt.r, s.Recall, 1e-9)
			assert.InDelta(t, tt.f1, s.F1, 1e-9)
		})
	}
}

func TestStrictSpans(t *testing.T) {
	doc := plainDoc(20)
	require.NoError(t, doc.AddGold(1, 4, corpus.ContentLabel))
	require.NoError(t, doc.AddGold(10, 12, corpus.ContentLabel))
	predict(t, doc, 1, 4)
	predict(t, doc, 10, 13)
	predict(t, doc, 16, 18)

	st, err := Spans([]*corpus.Document{doc}, corpus.ContentLabel, false)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TrueCount)
	assert.Equal(t, 3, st.PredictedCount)
	assert.InDelta(t, 1.0/3, st.Precision, 1e-9)
	assert.InDelta(t, 0.5, st.Recall, 1e-9)
}

func TestPartialSpans(t *testing.T) {
	doc := plainDoc(20)
	require.NoError(t, doc.AddGold(0, 3, corpus.ContentLabel))
	predict(t, doc, 2, 5)

	st, err := Spans([]*corpus.Document{doc}, corpus.ContentLabel, true)
	require.NoError(t, err)
	// overlap is 2 tokens of a 4-token prediction and a 4-token gold span
	assert.InDelta(t, 0.5, st.Precision, 1e-9)
	assert.InDelta(t, 0.5, st.Recall, 1e-9)
}

func TestSpansIgnoreOtherLabels(t *testing.T) {
	doc := plainDoc(10)
	require.NoError(t, doc.AddGold(1, 2, "source"))
	predict(t, doc, 1, 2)

	st, err := Spans([]*corpus.Document{doc}, corpus.ContentLabel, false)
	require.NoError(t, err)
	assert.Zero(t, st.TrueCount)
	assert.Equal(t, 1, st.PredictedCount)
	assert.Zero(t, st.Precision)
}

func TestMultipleMatchesError(t *testing.T) {
	doc := plainDoc(10)
	require.NoError(t, doc.AddGold(1, 2, corpus.ContentLabel))
	require.NoError(t, doc.AddGold(1, 2, corpus.ContentLabel))
	predict(t, doc, 1, 2)

	_, err := Spans([]*corpus.Document{doc}, corpus.ContentLabel, false)
	assert.ErrorIs(t, err, ErrMultipleMatches)
}

func TestSpansByType(t *testing.T) {
	doc := newDoc("He", "said", "\"", "no", "\"", "and", "that", "it", "rained", ".")
	require.NoError(t, doc.AddGold(2, 4, corpus.ContentLabel))
	require.NoError(t, doc.AddGold(6, 8, corpus.ContentLabel))
	predict(t, doc, 2, 4)
	predict(t, doc, 6, 7)

	byType, err := SpansByType([]*corpus.Document{doc}, corpus.ContentLabel, false)
	require.NoError(t, err)

	direct := byType[corpus.Direct]
	assert.Equal(t, 1, direct.TrueCount)
	assert.Equal(t, 1, direct.PredictedCount)
	assert.InDelta(t, 1, direct.F1, 1e-9)

	indirect := byType[corpus.Indirect]
	assert.Equal(t, 1, indirect.TrueCount)
	assert.Equal(t, 1, indirect.PredictedCount)
	assert.Zero(t, indirect.F1)

	assert.Zero(t, byType[corpus.Mixed].TrueCount)
}

func TestTokens(t *testing.T) {
	doc := plainDoc(6)
	doc.Tokens[1].GoldCue = true
	doc.Tokens[3].GoldCue = true
	doc.Tokens[3].PredictedCue = true
	doc.Tokens[5].PredictedCue = true

	st := Tokens([]*corpus.Document{doc}, GoldCue, PredictedCue)
	assert.Equal(t, 2, st.TrueCount)
	assert.Equal(t, 2, st.PredictedCount)
	assert.InDelta(t, 0.5, st.F1, 1e-9)
}

func TestReportWrite(t *testing.T) {
	doc := plainDoc(10)
	require.NoError(t, doc.AddGold(2, 5, corpus.ContentLabel))
	doc.Tokens[2].BeginScore = 1
	doc.Tokens[5].EndScore = 1
	predict(t, doc, 2, 5)

	r, err := NewReport([]*corpus.Document{doc})
	require.NoError(t, err)
	assert.InDelta(t, 1, r.Strict.F1, 1e-9)
	assert.InDelta(t, 1, r.Begin.F1, 1e-9)
	assert.InDelta(t, 1, r.End.F1, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "strict")
	assert.Contains(t, out, "partial INDIRECT")
	assert.Contains(t, out, "1.000")
}

func TestReportAdd(t *testing.T) {
	hit := plainDoc(10)
	require.NoError(t, hit.AddGold(2, 5, corpus.ContentLabel))
	predict(t, hit, 2, 5)
	miss := plainDoc(10)
	require.NoError(t, miss.AddGold(1, 3, corpus.ContentLabel))

	total := &Report{}
	for _, doc := range []*corpus.Document{hit, miss} {
		r, err := NewReport([]*corpus.Document{doc})
		require.NoError(t, err)
		total.Add(r)
	}
	assert.Equal(t, 2, total.Strict.TrueCount)
	assert.Equal(t, 1, total.Strict.PredictedCount)
	assert.InDelta(t, 1, total.Strict.Precision, 1e-9)
	assert.InDelta(t, 0.5, total.Strict.Recall, 1e-9)
	assert.NotNil(t, total.StrictByType)
}
