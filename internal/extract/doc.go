// Package extract finds and rewrites the references embedded in HTML and
// CSS documents.
//
// HTML is decoded to UTF-8 with golang.org/x/net/html/charset, parsed with
// golang.org/x/net/html and walked with goquery. Document.Links yields one
// Occurrence per reference in document order: href, src, srcset
// candidates, lazy-load attributes, object codebase/data/archive,
// meta-refresh targets and every url() or @import inside inline style
// attributes and <style> elements.
//
// Each Occurrence carries the Element it was found on, the attribute name
// (empty for element text) and the byte position of the URL inside that
// value, so the caller can swap the URL in place with Element.ReplaceURL
// while iterating.
//
// Stylesheets and scripts are scanned as plain text with ScanCSS and
// rewritten with RewriteCSS.
package extract
