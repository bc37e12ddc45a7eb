package urlpath

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Input is the complete set of values a canonical path depends on.
// Input is comparable so it can key a memoization cache.
type Input struct {
	// URL is the resource URL. Relative URLs are resolved against BaseURL.
	URL string

	// BaseURL is the crawl's start URL.
	BaseURL string

	// BasePath is the absolute project directory all paths live under.
	BasePath string

	// Layout selects hierarchical or linear placement.
	Layout Layout

	// ContentType is the expected content type, used to synthesize a file
	// name and extension when the URL has none. It may be empty.
	ContentType string
}

// Resolve maps in to a filesystem path below in.BasePath.
//
// The result depends only on in. URLs without a file name get one derived
// from the content-type hint ("index.html" for a directory URL of an HTML
// page); query-only or hint-less URLs get a name built from the CRC-32 of
// the normalized URL so that distinct URLs never share a file, and a leaf
// that still has no extension never equals a directory segment.
func Resolve(in Input) (string, error) {
	u, err := absolute(in.URL, in.BaseURL)
	if err != nil {
		return "", err
	}

	dirs, last := splitPath(u)
	stem, ext := splitExt(last)
	name := fileName(stem, ext, u.RawQuery, checksum(u), defaultsFor(in.ContentType), in.Layout)

	parts := []string{filepath.Clean(in.BasePath)}
	if in.Layout == Hierarchical {
		parts = append(parts, hostSegment(u))
		for _, d := range dirs {
			parts = append(parts, sanitizeSegment(d, maxSegmentLen))
		}
	}
	parts = append(parts, name)
	return filepath.Join(parts...), nil
}

// absolute parses rawURL and resolves it against baseURL when relative.
func absolute(rawURL, baseURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !u.IsAbs() && baseURL != "" {
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: base: %w", ErrInvalidURL, err)
		}
		u = base.ResolveReference(u)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// splitPath returns the decoded directory segments of u and its final
// segment. The final segment is empty for paths ending in "/".
func splitPath(u *url.URL) ([]string, string) {
	raw := u.EscapedPath()
	segs := make([]string, 0, strings.Count(raw, "/"))
	for _, s := range strings.Split(raw, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
			continue
		}
		if dec, err := url.PathUnescape(s); err == nil {
			s = dec
		}
		segs = append(segs, s)
	}
	if len(segs) == 0 || strings.HasSuffix(raw, "/") {
		return segs, ""
	}
	return segs[:len(segs)-1], segs[len(segs)-1]
}

// hostSegment names the top-level directory of a hierarchical mirror.
// Non-default ports are kept so two servers on one host stay apart.
func hostSegment(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(strings.ToLower(u.Scheme), port) {
		host += "_" + port
	}
	return sanitizeSegment(host, maxSegmentLen)
}

func fileName(stem, ext, query, sum string, d nameDefaults, layout Layout) string {
	if ext == "" {
		ext = d.suffix
	}
	limit := maxSegmentLen - len(ext)

	switch {
	case stem == "" && query == "" && d.prefix != "" && layout == Hierarchical:
		return d.prefix + ext
	case stem == "" && d.prefix == "":
		return sum + ext
	case stem == "":
		return d.prefix + "_" + sum + ext
	case query != "" || layout == Linear || ext == "":
		// A bare extension-less leaf could collide with a directory of
		// the same name, so it carries the checksum too.
		return sanitizeSegment(stem, limit-len(sum)-1) + "_" + sum + ext
	default:
		return sanitizeSegment(stem, limit) + ext
	}
}
