package urlpath

import (
	"fmt"
	"hash/crc32"
	"net"
	"net/url"
	"strings"
)

// Normalize returns the canonical form of an absolute URL: lowercase scheme
// and host, no default port, no user info, no fragment and "/" for an
// empty path. Index keys and path checksums are computed from this form.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	return normalizeURL(u), nil
}

func normalizeURL(u *url.URL) string {
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	host := strings.ToLower(c.Hostname())
	port := c.Port()
	switch {
	case port != "" && !isDefaultPort(c.Scheme, port):
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	c.Host = host
	c.User = nil
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" && c.RawPath == "" {
		c.Path = "/"
	}
	return c.String()
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// checksum is the CRC-32 of the normalized URL as eight hex digits.
func checksum(u *url.URL) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(normalizeURL(u))))
}
