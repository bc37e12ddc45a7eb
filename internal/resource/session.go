package resource

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/pagemirror/internal/transport"
	"github.com/nao1215/pagemirror/internal/urlpath"
)

// Transport performs HTTP requests. A returned error means no response was
// received; error statuses are returned as responses.
type Transport interface {
	Request(ctx context.Context, method, rawURL string, header http.Header) (*transport.Response, error)
}

// Policy decides whether a URL may be fetched and paces requests.
type Policy interface {
	IsAllowed(ctx context.Context, rawURL, userAgent string) bool
	Wait(ctx context.Context, rawURL string) error
}

// Store persists mirrored files.
type Store interface {
	Persist(path string, r io.Reader) (int64, error)
	Exists(path string) bool
	Overwrite() bool
}

// Handler receives every resource discovered while retrieving a document.
// Handle must not return before the child's Resolve result is final.
type Handler interface {
	Handle(ctx context.Context, r *Resource)
	ValidateURL(rawURL string) bool
	KindFor(tag string) Kind
}

// Session holds the collaborators shared by every resource of a run.
type Session struct {
	Transport Transport

	// Policy may be nil, which allows everything without delay.
	Policy Policy

	Store   Store
	Handler Handler

	// Resolver memoizes canonical paths. A nil Resolver does not cache.
	Resolver *urlpath.Resolver

	Logger *slog.Logger

	// UserAgent is the agent name checked against the access policy.
	UserAgent string

	// Header returns extra request headers for a URL. It may be nil.
	Header func(rawURL string) http.Header

	// Version is written into the watermark of saved pages.
	Version string

	// Now returns the watermark time. It defaults to time.Now.
	Now func() time.Time
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Session) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Session) header(rawURL string) http.Header {
	if s.Header == nil {
		return nil
	}
	return s.Header(rawURL)
}
