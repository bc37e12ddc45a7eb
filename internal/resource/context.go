package resource

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/nao1215/pagemirror/internal/urlpath"
)

// Context describes where a resource lives remotely and locally.
// It is a value; With derives the context of a discovered reference.
type Context struct {
	// URL is the absolute URL of the resource.
	URL string

	// BaseURL is the start URL of the run.
	BaseURL string

	// BasePath is the absolute project directory.
	BasePath string

	// Layout selects hierarchical or linear file placement.
	Layout urlpath.Layout

	// ContentType is the expected content type, if known.
	ContentType string
}

// NewContext creates the context of a run's start URL.
func NewContext(rawURL, basePath string, layout urlpath.Layout) (Context, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !isFetchable(u) {
		return Context{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return Context{}, fmt.Errorf("failed to resolve base path: %w", err)
	}
	return Context{
		URL:      u.String(),
		BaseURL:  u.String(),
		BasePath: abs,
		Layout:   layout,
	}, nil
}

// With returns the context of rawURL within the same run.
func (c Context) With(rawURL string) Context {
	return Context{
		URL:      rawURL,
		BaseURL:  c.BaseURL,
		BasePath: c.BasePath,
		Layout:   c.Layout,
	}
}

// WithContentType returns a copy of c with the content type set.
func (c Context) WithContentType(contentType string) Context {
	c.ContentType = contentType
	return c
}

func (c Context) input() urlpath.Input {
	return urlpath.Input{
		URL:         c.URL,
		BaseURL:     c.BaseURL,
		BasePath:    c.BasePath,
		Layout:      c.Layout,
		ContentType: c.ContentType,
	}
}

func isFetchable(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}
