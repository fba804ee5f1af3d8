// Package features turns tokens and spans into sparse binary feature
// identifiers.
//
// The extractors here are lexical: they look at token text and positions
// only. Corpora that already carry boundary features keep them; TokenFeatures
// is only needed for raw annotated text.
package features

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/internal/textutil"
)

// None marks a neighbour beyond the document edge.
const None = "NONE"

// Window is the number of neighbours on each side included in token features.
const Window = 3

// Shape maps a word to its character classes: X for upper case, x for lower
// case, 0 for digits and _ for spaces. Other runes are kept. A class is
// repeated at most three times in a row.
func Shape(word string) string {
	var b strings.Builder
	var last rune
	run := 0
	for _, r := range word {
		var c rune
		switch {
		case unicode.IsUpper(r):
			c = 'X'
		case unicode.IsLower(r):
			c = 'x'
		case unicode.IsDigit(r):
			c = '0'
		case unicode.IsSpace(r):
			c = '_'
		default:
			c = r
		}
		if c == last {
			run++
		} else {
			last, run = c, 1
		}
		if run <= 3 {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func word(doc *corpus.Document, i int) string {
	t := doc.Token(i)
	if t == nil {
		return None
	}
	return strings.ToLower(t.Text)
}

// TokenFeatures fills the boundary features of every token in doc.
func TokenFeatures(doc *corpus.Document) {
	for i, t := range doc.Tokens {
		lower := strings.ToLower(t.Text)
		fs := []string{
			"TOKEN=" + t.Text,
			"LOWER=" + lower,
			"SHAPE=" + Shape(t.Text),
			"BIGRAM-WORD-L=" + word(doc, i-1) + "_" + lower,
			"BIGRAM-WORD-R=" + lower + "_" + word(doc, i+1),
		}
		if textutil.IsQuote(t.Text) {
			fs = append(fs, "QUOTE")
		}
		if textutil.IsPunct(t.Text) {
			fs = append(fs, "PUNCT")
		}
		for k := 1; k <= Window; k++ {
			d := strconv.Itoa(k)
			fs = append(fs,
				"PREV-TOKEN-"+d+"="+word(doc, i-k),
				"NEXT-TOKEN-"+d+"="+word(doc, i+k),
			)
			if doc.IsQuote(i - k) {
				fs = append(fs, "PREV-QUOTE-"+d)
			}
			if doc.IsQuote(i + k) {
				fs = append(fs, "NEXT-QUOTE-"+d)
			}
		}
		if i == 0 {
			fs = append(fs, "DOC-BEGIN")
		}
		if i == doc.Len()-1 {
			fs = append(fs, "DOC-END")
		}
		t.Features = fs
	}
}
