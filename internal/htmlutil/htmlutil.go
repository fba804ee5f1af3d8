// Package htmlutil reads annotated HTML corpora and renders predictions
// back to HTML.
//
// Every <article> element is one document. Elements with class "content"
// mark gold content spans and elements with class "cue" mark cue tokens:
//
//	<article id="a1" data-url="https://example.org/news">
//	  Officials <span class="cue">said</span>
//	  <span class="content">the bridge would reopen</span>.
//	</article>
package htmlutil

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/happyhackingspace/qsample/corpus"
	"github.com/happyhackingspace/qsample/internal/textutil"
)

// Classes marking annotations.
const (
	ContentClass = "content"
	CueClass     = "cue"
)

// LoadHTML parses HTML into a goquery Document.
func LoadHTML(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// LoadHTMLString parses an HTML string into a goquery Document.
func LoadHTMLString(s string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(s))
}

// ParseAnnotated reads every <article> of r as a document. Articles
// without an id are numbered in document order.
func ParseAnnotated(r io.Reader) ([]*corpus.Document, error) {
	doc, err := LoadHTML(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		docs []*corpus.Document
		errs error
	)
	doc.Find("article").Each(func(i int, s *goquery.Selection) {
		if errs != nil {
			return
		}
		id, ok := s.Attr("id")
		if !ok || id == "" {
			id = fmt.Sprintf("article-%d", i)
		}
		d, err := parseArticle(s.Get(0), id)
		if err != nil {
			errs = fmt.Errorf("article %q: %w", id, err)
			return
		}
		d.URL, _ = s.Attr("data-url")
		docs = append(docs, d)
	})
	if errs != nil {
		return nil, errs
	}
	return docs, nil
}

// HasClass reports whether n has class among its classes.
func HasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && slices.Contains(strings.Fields(a.Val), class) {
			return true
		}
	}
	return false
}

func parseArticle(root *html.Node, id string) (*corpus.Document, error) {
	var (
		tokens []*corpus.Token
		spans  [][2]int
	)

	var walk func(n *html.Node, inContent, inCue bool)
	walk = func(n *html.Node, inContent, inCue bool) {
		switch n.Type {
		case html.TextNode:
			for _, w := range textutil.Tokenize(n.Data) {
				tokens = append(tokens, &corpus.Token{Text: w, GoldCue: inCue})
			}
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}

		opens := !inContent && n.Type == html.ElementNode && HasClass(n, ContentClass)
		start := len(tokens)
		cue := inCue || n.Type == html.ElementNode && HasClass(n, CueClass)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inContent || opens, cue)
		}
		if opens && len(tokens) > start {
			spans = append(spans, [2]int{start, len(tokens) - 1})
		}
	}
	walk(root, false, false)

	d := corpus.NewDocument(id, tokens)
	for _, s := range spans {
		if err := d.AddGold(s[0], s[1], corpus.ContentLabel); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Render writes docs as <article> elements with predicted spans and cues
// marked up the way ParseAnnotated reads them. Spans overlapping an
// earlier span are not rendered.
func Render(w io.Writer, docs []*corpus.Document) error {
	for _, d := range docs {
		if err := html.Render(w, articleNode(d)); err != nil {
			return fmt.Errorf("render %q: %w", d.ID, err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func articleNode(d *corpus.Document) *html.Node {
	article := element(atom.Article, html.Attribute{Key: "id", Val: d.ID})
	if d.URL != "" {
		article.Attr = append(article.Attr, html.Attribute{Key: "data-url", Val: d.URL})
	}

	ends := make(map[int]int)
	last := -1
	if d.Predicted != nil {
		for _, s := range d.Predicted.Spans() {
			if s.Begin <= last {
				continue
			}
			ends[s.Begin] = s.End
			last = s.End
		}
	}

	parent := article
	closeAt := -1
	for i, t := range d.Tokens {
		if i > 0 {
			parent.AppendChild(text(" "))
		}
		if end, ok := ends[i]; ok {
			span := element(atom.Span, html.Attribute{Key: "class", Val: ContentClass})
			article.AppendChild(span)
			parent, closeAt = span, end
		}
		if t.PredictedCue {
			cue := element(atom.Span, html.Attribute{Key: "class", Val: CueClass})
			cue.AppendChild(text(t.Text))
			parent.AppendChild(cue)
		} else {
			parent.AppendChild(text(t.Text))
		}
		if i == closeAt {
			parent, closeAt = article, -1
		}
	}
	return article
}
