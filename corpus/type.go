package corpus

import "github.com/happyhackingspace/qsample/internal/textutil"

// SpanType classifies a span by its quotation marks.
type SpanType string

const (
	Direct   SpanType = "DIRECT"
	Indirect SpanType = "INDIRECT"
	Mixed    SpanType = "MIXED"
)

// IsQuote reports whether the token at position i is a quotation mark.
func (d *Document) IsQuote(i int) bool {
	t := d.Token(i)
	return t != nil && textutil.IsQuote(t.Text)
}

// SpanType returns Direct when s starts and ends with a quotation mark,
// Mixed when it contains one elsewhere and Indirect otherwise.
func (d *Document) SpanType(s *Span) SpanType {
	if d.IsQuote(s.Begin) && d.IsQuote(s.End) {
		return Direct
	}
	for i := s.Begin; i <= s.End; i++ {
		if d.IsQuote(i) {
			return Mixed
		}
	}
	return Indirect
}
