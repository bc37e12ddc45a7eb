package resource

import (
	"fmt"
	"strings"
)

// Kind is the variant of a Resource.
type Kind int

const (
	// KindHTML is a page whose references are mirrored and rewritten.
	KindHTML Kind = iota
	// KindCSS is a stylesheet whose url() and @import targets are mirrored.
	KindCSS
	// KindJS is a script scanned like a stylesheet.
	KindJS
	// KindGeneric is saved byte for byte.
	KindGeneric
	// KindGenericOnly is saved byte for byte unless it turns out to be HTML.
	KindGenericOnly
	// KindVoid is a disabled reference.
	KindVoid
	// KindAbsoluteURL is never downloaded and stays an absolute link.
	KindAbsoluteURL
	// KindBase64 is inlined into the parent as a data URI.
	KindBase64
)

var kindNames = [...]string{
	KindHTML:        "html",
	KindCSS:         "css",
	KindJS:          "js",
	KindGeneric:     "generic",
	KindGenericOnly: "generic-only",
	KindVoid:        "void",
	KindAbsoluteURL: "absolute",
	KindBase64:      "base64",
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the Kind named by name.
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, s := range kindNames {
		if s == n {
			return Kind(k), nil
		}
	}
	return KindVoid, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// ContentTypeHint is the content type assumed before the response is seen.
// It picks the synthesized file name of extension-less URLs.
func (k Kind) ContentTypeHint() string {
	switch k {
	case KindHTML:
		return "text/html"
	case KindCSS:
		return "text/css"
	case KindJS:
		return "application/javascript"
	default:
		return ""
	}
}

// Downloads reports whether resources of this kind perform network I/O.
func (k Kind) Downloads() bool {
	return k != KindVoid && k != KindAbsoluteURL
}

// Saves reports whether resources of this kind are written to disk.
func (k Kind) Saves() bool {
	return k.Downloads() && k != KindBase64
}

// Leaf reports whether resources of this kind never have children.
func (k Kind) Leaf() bool {
	return k != KindHTML && k != KindCSS && k != KindJS
}
