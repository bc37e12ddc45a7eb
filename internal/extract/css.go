package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Pseudo tags name references found in CSS text, so the scheduler's tag
// registry can map them like element tags.
const (
	// TagCSSImport marks an @import target.
	TagCSSImport = "css:import"

	// TagCSSURL marks any other url(...) reference.
	TagCSSURL = "css:url"
)

var (
	cssURLPattern    = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^'"\s)][^\s)]*))\s*\)`)
	cssImportPattern = regexp.MustCompile(`(?i)@import\s+(?:"([^"]*)"|'([^']*)')`)
)

// TextRef is a reference found in CSS or script text.
type TextRef struct {
	// URL is the reference exactly as written, without quotes.
	URL string

	// Pos is the byte offset of URL in the scanned text.
	Pos int

	// Import is true for @import targets.
	Import bool
}

// Tag returns the pseudo tag for the reference.
func (r TextRef) Tag() string {
	if r.Import {
		return TagCSSImport
	}
	return TagCSSURL
}

// ScanCSS returns every url(...) and @import reference in text, ordered by
// position. Empty references are skipped.
func ScanCSS(text string) []TextRef {
	var refs []TextRef
	for _, m := range cssURLPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := firstGroup(m)
		if start < 0 || start == end {
			continue
		}
		refs = append(refs, TextRef{
			URL:    text[start:end],
			Pos:    start,
			Import: precededByImport(text, m[0]),
		})
	}
	for _, m := range cssImportPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := firstGroup(m)
		if start < 0 || start == end {
			continue
		}
		refs = append(refs, TextRef{URL: text[start:end], Pos: start, Import: true})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Pos < refs[j].Pos })
	return refs
}

// RewriteCSS rebuilds text, replacing each ref for which replace returns
// true. refs must come from ScanCSS(text).
func RewriteCSS(text string, refs []TextRef, replace func(TextRef) (string, bool)) string {
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, ref := range refs {
		if ref.Pos < last {
			continue
		}
		newURL, ok := replace(ref)
		if !ok {
			continue
		}
		b.WriteString(text[last:ref.Pos])
		b.WriteString(newURL)
		last = ref.Pos + len(ref.URL)
	}
	b.WriteString(text[last:])
	return b.String()
}

func firstGroup(m []int) (int, int) {
	for g := 1; 2*g+1 < len(m); g++ {
		if m[2*g] >= 0 {
			return m[2*g], m[2*g+1]
		}
	}
	return -1, -1
}

// precededByImport reports whether the url( token at pos follows @import.
func precededByImport(text string, pos int) bool {
	from := max(pos-32, 0)
	head := strings.TrimRight(text[from:pos], " \t\r\n")
	return len(head) >= 7 && strings.EqualFold(head[len(head)-7:], "@import")
}
