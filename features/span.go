package features

import (
	"strconv"
	"strings"

	"github.com/happyhackingspace/qsample/corpus"
)

// SpanExtractor computes the span-level feature set of a finalized span.
type SpanExtractor interface {
	SpanFeatures(doc *corpus.Document, s *corpus.Span) []string
}

// Lexical extracts span features from token text, quotation marks and
// predicted cues.
type Lexical struct{}

var lengthBins = []int{1, 2, 3, 5, 10, 20, 40, 80}

// SpanFeatures implements SpanExtractor.
func (Lexical) SpanFeatures(doc *corpus.Document, s *corpus.Span) []string {
	fs := make([]string, 0, 16+s.Length())

	fs = append(fs, "SPANTYPE-"+string(doc.SpanType(s)))

	n := s.Length()
	for _, b := range lengthBins {
		if n <= b {
			fs = append(fs, "SPAN-LENGTH<="+strconv.Itoa(b))
		}
	}
	if n > lengthBins[len(lengthBins)-1] {
		fs = append(fs, "SPAN-LENGTH>"+strconv.Itoa(lengthBins[len(lengthBins)-1]))
	}

	cues := 0
	quotes := 0
	for i := s.Begin; i <= s.End; i++ {
		t := doc.Tokens[i]
		if t.PredictedCue {
			cues++
		}
		if doc.IsQuote(i) {
			quotes++
		}
		fs = append(fs, "INSIDE-LOWER="+strings.ToLower(t.Text))
	}
	if cues > 0 {
		fs = append(fs, "OVERLAPS-CUE", "OVERLAPS-CUE-"+strconv.Itoa(min(cues, 3)))
	} else {
		fs = append(fs, "NO-CUE-INSIDE")
	}
	fs = append(fs, "NUM-QM-EVEN="+strconv.FormatBool(quotes%2 == 0))
	if doc.IsQuote(s.Begin) {
		fs = append(fs, "STARTS-WITH-QUOTE")
	}
	if doc.IsQuote(s.End) {
		fs = append(fs, "ENDS-WITH-QUOTE")
	}

	fs = append(fs,
		"BE-CONJUNCTION-BEGIN="+word(doc, s.Begin-1)+"_"+word(doc, s.Begin),
		"BE-CONJUNCTION-END="+word(doc, s.End)+"_"+word(doc, s.End+1),
		"BE-CONJUNCTION-OUTER="+word(doc, s.Begin-1)+"_"+word(doc, s.End+1),
	)
	if prev := doc.Token(s.Begin - 1); prev != nil && prev.PredictedCue {
		fs = append(fs, "CUE-BEFORE")
	}
	if next := doc.Token(s.End + 1); next != nil && next.PredictedCue {
		fs = append(fs, "CUE-AFTER")
	}
	return dedupe(fs)
}
