package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Element is a handle on one element of a parsed Document.
//
// ReplaceURL tracks how far earlier replacements shifted each value, so
// the positions reported by Links stay valid while the caller rewrites
// occurrences of one attribute in the order they were yielded.
type Element struct {
	node  *html.Node
	shift map[string]int
}

func newElement(n *html.Node) *Element {
	return &Element{node: n, shift: make(map[string]int)}
}

// Tag returns the lowercase tag name.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(key string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or adds the named attribute.
func (e *Element) SetAttr(key, val string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the named attribute if present.
func (e *Element) RemoveAttr(key string) {
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
}

// Text returns the content of the element's first text child.
func (e *Element) Text() string {
	if t := e.textNode(); t != nil {
		return t.Data
	}
	return ""
}

// ReplaceURL replaces oldURL with newURL at byte position pos of the
// attribute attr, or of the element text when attr is empty. pos is the
// position reported by Links. It returns false when the value no longer
// holds oldURL at that position.
func (e *Element) ReplaceURL(oldURL, newURL, attr string, pos int) bool {
	val, ok := e.value(attr)
	at := pos + e.shift[attr]
	if !ok || at < 0 || at+len(oldURL) > len(val) || val[at:at+len(oldURL)] != oldURL {
		return false
	}
	e.setValue(attr, val[:at]+newURL+val[at+len(oldURL):])
	e.shift[attr] += len(newURL) - len(oldURL)
	return true
}

func (e *Element) value(attr string) (string, bool) {
	if attr == "" {
		t := e.textNode()
		if t == nil {
			return "", false
		}
		return t.Data, true
	}
	return e.Attr(attr)
}

func (e *Element) setValue(attr, val string) {
	if attr == "" {
		if t := e.textNode(); t != nil {
			t.Data = val
		}
		return
	}
	e.SetAttr(attr, val)
}

func (e *Element) textNode() *html.Node {
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			return c
		}
	}
	return nil
}
