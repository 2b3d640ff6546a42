// Package query is the structured-query layer over fetched markup. It wraps
// goquery with the extraction rules the catalog parsers rely on: nested text
// joined by an explicit separator, optional per-node trimming, raw outer
// markup, and attribute-filtered element search.
package query

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed page.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from raw markup.
func Parse(body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// ByID returns the first element with the given tag and id.
func (d *Document) ByID(tag, id string) *goquery.Selection {
	return d.doc.Find(tag + "#" + id).First()
}

// Has reports whether selector matches at least one element.
func (d *Document) Has(selector string) bool {
	return d.doc.Find(selector).Length() > 0
}

// MatchingID returns every element with the given tag whose id attribute
// matches pattern, in document order.
func (d *Document) MatchingID(tag string, pattern *regexp.Regexp) *goquery.Selection {
	return d.doc.Find(tag + "[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return pattern.MatchString(id)
	})
}

// Attr returns the attribute value of the first element in sel, or "".
func Attr(sel *goquery.Selection, name string) string {
	v, _ := sel.First().Attr(name)
	return v
}

// Text concatenates every descendant text node of the first element in sel,
// inserting sep between nodes. Nodes are kept verbatim.
func Text(sel *goquery.Selection, sep string) string {
	return joinText(sel, sep, false)
}

// StrippedText is Text with each node trimmed and blank nodes skipped.
func StrippedText(sel *goquery.Selection, sep string) string {
	return joinText(sel, sep, true)
}

// OuterHTML renders the first element in sel including its own tag. It
// returns "" when sel is empty or cannot be rendered.
func OuterHTML(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	out, err := goquery.OuterHtml(sel.First())
	if err != nil {
		return ""
	}
	return out
}

// Bare reports whether the first element in sel has neither an id nor a
// class attribute.
func Bare(sel *goquery.Selection) bool {
	_, hasID := sel.Attr("id")
	_, hasClass := sel.Attr("class")
	return !hasID && !hasClass
}

func joinText(sel *goquery.Selection, sep string, strip bool) string {
	if sel.Length() == 0 {
		return ""
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := n.Data
			if strip {
				text = strings.TrimSpace(text)
				if text == "" {
					return
				}
			}
			parts = append(parts, text)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel.Get(0))
	return strings.Join(parts, sep)
}
