package parse

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Sriram-PR/poedb-scraper/pkg/utils"
)

// Document is a parsed HTML page that supports selector queries
type Document struct {
	doc *goquery.Document
}

// Element is a single node inside a Document
type Element struct {
	sel *goquery.Selection
}

// ParseHTML parses raw page text into a queryable Document.
// The HTML5 parser is lenient, so malformed markup still yields a tree.
func ParseHTML(raw string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: HTML: %w", utils.ErrParsing, err)
	}
	return &Document{doc: goquery.NewDocumentFromNode(root)}, nil
}

// SelectAll returns every element matching selector in document order.
// An invalid selector matches nothing.
func (d *Document) SelectAll(selector string) []Element {
	return wrap(d.doc.Find(selector))
}

// SelectAllMatcher is SelectAll with a precompiled matcher, for selectors reused across many pages.
func (d *Document) SelectAllMatcher(m goquery.Matcher) []Element {
	return wrap(d.doc.FindMatcher(m))
}

// SelectFirst returns the first descendant of e matching selector
func (e Element) SelectFirst(selector string) (Element, bool) {
	return first(e.sel.Find(selector))
}

// SelectFirstMatcher returns the first descendant of e matched by m
func (e Element) SelectFirstMatcher(m goquery.Matcher) (Element, bool) {
	return first(e.sel.FindMatcher(m))
}

// Text returns the combined text of e and its descendants, trimmed of surrounding whitespace.
func (e Element) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

// Attr returns the value of attribute name and whether it was present
func (e Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// NextSibling returns the next element sibling, skipping text and comment nodes.
func (e Element) NextSibling() (Element, bool) {
	return first(e.sel.Next())
}

func first(s *goquery.Selection) (Element, bool) {
	if s.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: s.First()}, true
}

func wrap(s *goquery.Selection) []Element {
	out := make([]Element, 0, s.Length())
	s.Each(func(_ int, item *goquery.Selection) {
		out = append(out, Element{sel: item})
	})
	return out
}
