package urlpath

import "strings"

// nameDefaults is the default stem prefix and extension for a media type.
type nameDefaults struct {
	prefix string
	suffix string
}

// typeDefaults lists the media types that get a synthesized name when the
// URL itself carries none.
var typeDefaults = map[string]nameDefaults{
	"text/html":                {"index", ".html"},
	"application/xhtml+xml":    {"index", ".html"},
	"text/css":                 {"style", ".css"},
	"text/javascript":          {"script", ".js"},
	"application/javascript":   {"script", ".js"},
	"application/x-javascript": {"script", ".js"},
	"application/json":         {"data", ".json"},
	"text/plain":               {"file", ".txt"},
	"image/x-icon":             {"favicon", ".ico"},
	"image/vnd.microsoft.icon": {"favicon", ".ico"},
	"image/png":                {"image", ".png"},
	"image/jpeg":               {"image", ".jpg"},
	"image/gif":                {"image", ".gif"},
	"image/svg+xml":            {"image", ".svg"},
	"image/webp":               {"image", ".webp"},
	"font/woff":                {"font", ".woff"},
	"font/woff2":               {"font", ".woff2"},
}

// MediaType returns the lowercased media type of a Content-Type value
// without parameters.
func MediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// defaultsFor returns the naming defaults for a content-type hint.
// Unknown or empty hints yield empty defaults.
func defaultsFor(contentType string) nameDefaults {
	return typeDefaults[MediaType(contentType)]
}
