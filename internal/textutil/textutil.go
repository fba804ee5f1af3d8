// Package textutil provides tokenization helpers for annotated text.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

// Words, numbers with inner separators, or any single non-space rune.
var tokenizeRe = regexp.MustCompile(`[\p{L}\p{N}_]+(?:['’.,\-][\p{L}\p{N}_]+)*|[^\s\p{L}\p{N}_]`)

// Tokenize splits text into word tokens and single punctuation tokens.
// Quote characters always become tokens of their own.
func Tokenize(text string) []string {
	return tokenizeRe.FindAllString(text, -1)
}

var quoteRunes = map[rune]bool{
	'"': true, '\'': true, '`': true,
	'“': true, '”': true, '„': true, '‟': true,
	'‘': true, '’': true, '‚': true, '‛': true,
	'«': true, '»': true, '‹': true, '›': true,
}

// IsQuote reports whether token consists of quotation marks only.
// The PTB forms `` and '' count as quotes.
func IsQuote(token string) bool {
	if token == "" {
		return false
	}
	if token == "``" || token == "''" {
		return true
	}
	for _, r := range token {
		if !quoteRunes[r] {
			return false
		}
	}
	return true
}

// IsPunct reports whether token has no letters or digits.
func IsPunct(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var (
	newlineRe    = regexp.MustCompile(`[\n\r]`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

// NormalizeWhitespaces replaces newlines and multiple whitespace with a single space.
func NormalizeWhitespaces(text string) string {
	text = newlineRe.ReplaceAllString(text, " ")
	return multiSpaceRe.ReplaceAllString(text, " ")
}

// Normalize lowercases text and normalizes whitespace.
func Normalize(text string) string {
	return NormalizeWhitespaces(strings.ToLower(text))
}
