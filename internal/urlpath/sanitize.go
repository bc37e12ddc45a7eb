package urlpath

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxSegmentLen keeps every path segment below the 255-byte limit of
// common filesystems, leaving room for an extension and a checksum.
const maxSegmentLen = 200

// unsafeChars are replaced with an underscore in every segment.
const unsafeChars = `<>:"/\|?*`

// reservedNames are Windows device names. A file named after one of them,
// with or without an extension, cannot be created on Windows.
var reservedNames = func() map[string]bool {
	names := map[string]bool{"CON": true, "PRN": true, "AUX": true, "NUL": true}
	for i := 1; i <= 9; i++ {
		names[fmt.Sprintf("COM%d", i)] = true
		names[fmt.Sprintf("LPT%d", i)] = true
	}
	return names
}()

// sanitizeSegment makes s safe to use as a single path segment and cuts it
// to at most limit bytes.
func sanitizeSegment(s string, limit int) string {
	s = strings.TrimSpace(norm.NFC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if r < 0x20 || r == 0x7f || r == utf8.RuneError || strings.ContainsRune(unsafeChars, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), ". ")
	if out == "" {
		out = "_"
	}
	if isReserved(out) {
		out = "_" + out
	}
	return truncate(out, limit)
}

// isReserved reports whether name, ignoring any extension, is a Windows
// device name.
func isReserved(name string) bool {
	stem, _, _ := strings.Cut(name, ".")
	return reservedNames[strings.ToUpper(stem)]
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if n <= 0 {
		n = 1
	}
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// splitExt separates a file name into stem and extension. Only short
// alphanumeric extensions count; anything else stays part of the stem.
func splitExt(name string) (string, string) {
	ext := path.Ext(name)
	if len(ext) < 2 || len(ext) > 10 || len(ext) == len(name) {
		return name, ""
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return name, ""
		}
	}
	return strings.TrimSuffix(name, ext), ext
}
