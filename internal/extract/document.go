package extract

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Occurrence is one reference found in a Document.
type Occurrence struct {
	// Element holds the reference and accepts the rewritten URL.
	Element *Element

	// Tag is the element's tag name, or TagCSSImport / TagCSSURL for
	// references inside inline CSS.
	Tag string

	// Attr is the attribute holding the reference; empty for element text.
	Attr string

	// URL is the reference exactly as written.
	URL string

	// Pos is the byte offset of URL inside the attribute value or text.
	Pos int
}

// Document is a parsed HTML document.
type Document struct {
	root *html.Node
	doc  *goquery.Document
}

// Parse decodes r to UTF-8 using the charset declared in contentType or
// sniffed from the content, and parses it as HTML.
func Parse(r io.Reader, contentType string) (*Document, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	root, err := html.Parse(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return newDocument(root), nil
}

// Empty returns a document with only the implied html, head and body.
func Empty() *Document {
	root, _ := html.Parse(strings.NewReader("")) //nolint:errcheck // strings.Reader never fails
	return newDocument(root)
}

func newDocument(root *html.Node) *Document {
	return &Document{root: root, doc: goquery.NewDocumentFromNode(root)}
}

// Base returns the href of the first <base> element, or "".
func (d *Document) Base() string {
	return strings.TrimSpace(d.doc.Find("base[href]").First().AttrOr("href", ""))
}

// DropBase removes the href of every <base> element so relative links
// resolve against the document's own location.
func (d *Document) DropBase() {
	d.doc.Find("base[href]").RemoveAttr("href")
}

// Watermark inserts text as a comment at the start of <head>.
func (d *Document) Watermark(text string) {
	for strings.Contains(text, "--") {
		text = strings.ReplaceAll(text, "--", "- -")
	}
	comment := &html.Node{Type: html.CommentNode, Data: text}

	parent := d.root
	if head := d.doc.Find("head").First(); head.Length() > 0 {
		parent = head.Get(0)
	}
	parent.InsertBefore(comment, parent.FirstChild)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// Links yields every reference in document order. Occurrences of one
// element are yielded together, attribute by attribute, with positions
// increasing within each value.
func (d *Document) Links() iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		d.doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			return elementLinks(newElement(s.Get(0)), yield)
		})
	}
}
