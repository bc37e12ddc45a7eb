package urlpath

import (
	"net/url"
	"strings"
)

// SameSite reports whether a and b belong to the same site.
//
// Hosts are compared case-insensitively after dropping the default HTTP
// and HTTPS ports and a single leading "www." label. The scheme is
// ignored, so http://www.example.com and https://example.com match.
func SameSite(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return siteHost(a) == siteHost(b)
}

// WithinBase reports whether u is on the same site as base and its path
// lies below the directory of base's path.
func WithinBase(base, u *url.URL) bool {
	if !SameSite(base, u) {
		return false
	}
	dir := "/"
	if i := strings.LastIndex(base.Path, "/"); i >= 0 {
		dir = base.Path[:i+1]
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return strings.HasPrefix(p, dir)
}

func siteHost(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}
	return host
}
