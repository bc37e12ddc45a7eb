package extract

import (
	"strings"

	"golang.org/x/net/html/atom"
)

// urlAttrs hold a single URL.
var urlAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"data-src":   true,
	"poster":     true,
	"action":     true,
	"data":       true,
	"background": true,
	"codebase":   true,
}

// srcsetAttrs hold a comma-separated candidate list.
var srcsetAttrs = map[string]bool{
	"srcset":      true,
	"data-srcset": true,
}

// ignoredRels are <link> relations that point at origins or documents
// rather than at resources of the page.
var ignoredRels = map[string]bool{
	"preconnect":   true,
	"dns-prefetch": true,
	"canonical":    true,
	"alternate":    true,
	"pingback":     true,
}

type span struct{ start, end int }

// elementLinks yields the occurrences of one element. It returns false
// when yield asked to stop.
func elementLinks(el *Element, yield func(Occurrence) bool) bool {
	tag := el.Tag()
	if tag == atom.Base.String() || (tag == atom.Link.String() && hasIgnoredRel(el)) {
		return true
	}

	emit := func(t, attr, val string, spans []span) bool {
		for _, s := range spans {
			if !yield(Occurrence{Element: el, Tag: t, Attr: attr, URL: val[s.start:s.end], Pos: s.start}) {
				return false
			}
		}
		return true
	}

	// Snapshot the attributes: the caller may rewrite them while we yield.
	attrs := make([]struct{ key, val string }, 0, len(el.node.Attr))
	for _, a := range el.node.Attr {
		if a.Namespace == "" {
			attrs = append(attrs, struct{ key, val string }{strings.ToLower(a.Key), a.Val})
		}
	}

	for _, a := range attrs {
		switch {
		case urlAttrs[a.key]:
			if s, ok := trimmedSpan(a.val, 0, len(a.val)); ok && !emit(tag, a.key, a.val, []span{s}) {
				return false
			}
		case srcsetAttrs[a.key]:
			if !emit(tag, a.key, a.val, srcsetSpans(a.val)) {
				return false
			}
		case a.key == "archive":
			if !emit(tag, a.key, a.val, listSpans(a.val)) {
				return false
			}
		case a.key == "content" && tag == atom.Meta.String() && isRefresh(el):
			if s, ok := refreshSpan(a.val); ok && !emit(tag, a.key, a.val, []span{s}) {
				return false
			}
		case a.key == "style":
			if !emitCSS(el, a.key, a.val, yield) {
				return false
			}
		}
	}

	if tag == atom.Style.String() {
		return emitCSS(el, "", el.Text(), yield)
	}
	return true
}

func emitCSS(el *Element, attr, text string, yield func(Occurrence) bool) bool {
	for _, ref := range ScanCSS(text) {
		if !yield(Occurrence{Element: el, Tag: ref.Tag(), Attr: attr, URL: ref.URL, Pos: ref.Pos}) {
			return false
		}
	}
	return true
}

func hasIgnoredRel(el *Element) bool {
	rel, _ := el.Attr("rel")
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if ignoredRels[r] {
			return true
		}
	}
	return false
}

func isRefresh(el *Element) bool {
	v, _ := el.Attr("http-equiv")
	return strings.EqualFold(strings.TrimSpace(v), "refresh")
}

// trimmedSpan returns the span of val[start:end] without surrounding
// whitespace.
func trimmedSpan(val string, start, end int) (span, bool) {
	for start < end && isSpace(val[start]) {
		start++
	}
	for end > start && isSpace(val[end-1]) {
		end--
	}
	return span{start, end}, end > start
}

// srcsetSpans returns the URL of each srcset candidate. A URL is a run of
// non-space characters; trailing commas belong to the separator.
func srcsetSpans(val string) []span {
	var out []span
	i := 0
	for i < len(val) {
		for i < len(val) && (isSpace(val[i]) || val[i] == ',') {
			i++
		}
		start := i
		for i < len(val) && !isSpace(val[i]) {
			i++
		}
		end := i
		for end > start && val[end-1] == ',' {
			end--
		}
		if end > start {
			out = append(out, span{start, end})
		}
		if end < i {
			continue
		}
		for i < len(val) && val[i] != ',' {
			i++
		}
	}
	return out
}

// listSpans splits a whitespace or comma separated URL list.
func listSpans(val string) []span {
	var out []span
	i := 0
	for i < len(val) {
		for i < len(val) && (isSpace(val[i]) || val[i] == ',') {
			i++
		}
		start := i
		for i < len(val) && !isSpace(val[i]) && val[i] != ',' {
			i++
		}
		if i > start {
			out = append(out, span{start, i})
		}
	}
	return out
}

// refreshSpan locates the target of a meta refresh value such as
// "5; url='/next.html'".
func refreshSpan(val string) (span, bool) {
	lower := strings.ToLower(val)
	i := strings.Index(lower, "url")
	if i < 0 {
		return span{}, false
	}
	j := i + 3
	for j < len(val) && isSpace(val[j]) {
		j++
	}
	if j >= len(val) || val[j] != '=' {
		return span{}, false
	}
	j++
	for j < len(val) && isSpace(val[j]) {
		j++
	}
	end := len(val)
	if j < len(val) && (val[j] == '\'' || val[j] == '"') {
		if k := strings.IndexByte(val[j+1:], val[j]); k >= 0 {
			end = j + 1 + k
		}
		j++
	}
	return trimmedSpan(val, j, end)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
