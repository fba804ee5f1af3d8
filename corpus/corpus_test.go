package corpus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDoc(n int) *Document {
	tokens := make([]*Token, n)
	for i := range tokens {
		tokens[i] = &Token{Text: fmt.Sprintf("w%d", i)}
	}
	return NewDocument("doc", tokens)
}

func TestNewSpanRangeCheck(t *testing.T) {
	d := newDoc(10)
	tests := []struct {
		begin, end int
		ok         bool
	}{
		{0, 0, true},
		{2, 5, true},
		{9, 9, true},
		{-1, 3, false},
		{3, 10, false},
		{5, 2, false},
		{-1, -1, false},
	}
	for _, tt := range tests {
		s, err := NewSpan(d, tt.begin, tt.end, ContentLabel)
		if tt.ok {
			require.NoError(t, err)
			assert.Equal(t, tt.begin, s.Begin)
			assert.Equal(t, tt.end, s.End)
		} else {
			assert.ErrorIs(t, err, ErrSpanOutOfRange, "[%d,%d]", tt.begin, tt.end)
		}
	}
}

func TestSpanIdentityIgnoresLabel(t *testing.T) {
	d := newDoc(10)
	a, err := NewSpan(d, 2, 5, "content")
	require.NoError(t, err)
	b, err := NewSpan(d, 2, 5, "quote")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())

	set := NewSpanSet()
	assert.True(t, set.Add(a))
	assert.False(t, set.Add(b))
	assert.True(t, set.Contains(b))
	assert.Equal(t, 1, set.Len())
}

func TestOverlapProperties(t *testing.T) {
	d := newDoc(8)
	var spans []*Span
	for b := 0; b < d.Len(); b++ {
		for e := b; e < d.Len(); e++ {
			s, err := NewSpan(d, b, e, ContentLabel)
			require.NoError(t, err)
			spans = append(spans, s)
		}
	}
	for _, a := range spans {
		for _, b := range spans {
			assert.Equal(t, a.Overlaps(b), b.Overlaps(a), "%v %v", a, b)
			ov := a.ComputeOverlap(b)
			assert.GreaterOrEqual(t, ov, 0)
			assert.LessOrEqual(t, ov, min(a.Length(), b.Length()))
			assert.Equal(t, ov > 0, a.Overlaps(b))
		}
	}
}

func TestSpanRelations(t *testing.T) {
	d := newDoc(10)
	outer, _ := NewSpan(d, 2, 7, ContentLabel)
	inner, _ := NewSpan(d, 3, 5, ContentLabel)
	shared, _ := NewSpan(d, 2, 4, ContentLabel)
	apart, _ := NewSpan(d, 8, 9, ContentLabel)

	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
	assert.True(t, outer.SemiMatches(shared))
	assert.False(t, outer.SemiMatches(inner))
	assert.False(t, outer.Overlaps(apart))
	assert.Equal(t, 6, outer.Length())
	assert.Equal(t, 3, outer.ComputeOverlap(inner))
}

func TestSpanSetQueries(t *testing.T) {
	d := newDoc(20)
	set := NewSpanSet()
	for _, p := range [][2]int{{10, 12}, {2, 4}, {6, 8}} {
		s, err := NewSpan(d, p[0], p[1], ContentLabel)
		require.NoError(t, err)
		set.Add(s)
	}

	spans := set.Spans()
	require.Len(t, spans, 3)
	assert.Equal(t, 2, spans[0].Begin)
	assert.Equal(t, 6, spans[1].Begin)
	assert.Equal(t, 10, spans[2].Begin)

	probe, _ := NewSpan(d, 4, 6, ContentLabel)
	assert.Len(t, set.Overlapping(probe), 2)
	assert.True(t, set.Covers(7))
	assert.False(t, set.Covers(5))
	assert.True(t, set.AnyBeginsAt(6))
	assert.True(t, set.AnyEndsAt(12))
	assert.False(t, set.AnyEndsAt(11))

	assert.False(t, set.Remove(probe))
	assert.True(t, set.Remove(spans[0]))
	assert.Equal(t, 2, set.Len())
}

func TestDocumentGold(t *testing.T) {
	d := newDoc(10)
	require.NoError(t, d.AddGold(1, 3, ContentLabel))
	require.NoError(t, d.AddGold(1, 3, "other"))
	require.Error(t, d.AddGold(4, 12, ContentLabel))

	probe, _ := NewSpan(d, 1, 3, ContentLabel)
	assert.Len(t, d.MatchingGold(probe), 2)
	assert.True(t, d.StartsGold(1))
	assert.True(t, d.EndsGold(3))
	assert.False(t, d.StartsGold(2))

	near, _ := NewSpan(d, 3, 6, ContentLabel)
	assert.Len(t, d.OverlappingGold(near), 2)
}

func TestBoundaryFeaturesDoNotAlias(t *testing.T) {
	tok := &Token{Features: make([]string, 1, 4)}
	tok.Features[0] = "A"
	tok.CueFeatures = []string{"B"}
	got := tok.BoundaryFeatures()
	assert.Equal(t, []string{"A", "B"}, got)
	assert.Len(t, tok.Features, 1)

	tok.CueFeatures = []string{"C"}
	assert.Equal(t, []string{"A", "B"}, got)
}
