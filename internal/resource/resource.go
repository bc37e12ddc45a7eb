package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/nao1215/pagemirror/internal/buffer"
	"github.com/nao1215/pagemirror/internal/storage"
	"github.com/nao1215/pagemirror/internal/transport"
	"github.com/nao1215/pagemirror/internal/urlpath"
)

// Result describes what Retrieve did.
type Result struct {
	// StatusCode is the HTTP status of the response, 0 if none.
	StatusCode int

	// Bytes is the number of bytes written to disk.
	Bytes int64

	// Digest is the hex BLAKE2b-256 of the downloaded body.
	Digest string

	// Placeholder is true when a failure notice was saved instead of content.
	Placeholder bool

	// Skipped is true when nothing was written: the file already existed or
	// a KindGenericOnly resource turned out to be HTML.
	Skipped bool
}

// Resource is one discovered reference and the work needed to mirror it.
//
// A Resource is processed by one goroutine. Resolve may be called by the
// parent concurrently with that processing; it only reads state fixed
// before the resource is dispatched.
type Resource struct {
	ctx   Context
	kind  Kind
	sess  *Session
	depth int

	pathMu  sync.Mutex
	path    string
	pathErr error

	resp     *transport.Response
	body     *buffer.Rewindable
	closed   bool
	detached bool
	dataURI  string
	result   Result
}

// New creates a resource of the given kind. depth is the number of links
// followed from the start page.
func New(c Context, kind Kind, sess *Session, depth int) *Resource {
	if c.ContentType == "" {
		c.ContentType = kind.ContentTypeHint()
	}
	return &Resource{ctx: c, kind: kind, sess: sess, depth: depth}
}

// Context returns the resource's context.
func (r *Resource) Context() Context { return r.ctx }

// URL returns the absolute URL of the resource.
func (r *Resource) URL() string { return r.ctx.URL }

// Kind returns the resource's variant.
func (r *Resource) Kind() Kind { return r.kind }

// Depth returns the number of links followed to reach the resource.
func (r *Resource) Depth() int { return r.depth }

// Response returns the bound response, or nil before Fetch.
func (r *Resource) Response() *transport.Response { return r.resp }

// Result returns the outcome of Retrieve.
func (r *Resource) Result() Result { return r.result }

// Detached reports whether the resource keeps its absolute URL.
func (r *Resource) Detached() bool { return r.detached }

// Filepath returns the local path of the resource, computing it on first
// use.
func (r *Resource) Filepath() (string, error) {
	r.pathMu.Lock()
	defer r.pathMu.Unlock()

	if r.path == "" && r.pathErr == nil {
		r.path, r.pathErr = r.sess.Resolver.Resolve(r.ctx.input())
		if r.pathErr != nil {
			r.pathErr = fmt.Errorf("%w: %w", ErrInvalidURL, r.pathErr)
		}
	}
	return r.path, r.pathErr
}

// BindPath fixes the local path, typically to the one another resource
// already claimed for the same URL.
func (r *Resource) BindPath(path string) {
	r.pathMu.Lock()
	defer r.pathMu.Unlock()
	r.path, r.pathErr = path, nil
}

// Detach makes Resolve return the absolute URL. It is used for references
// that are not mirrored.
func (r *Resource) Detach() {
	r.detached = true
}

// SetResponse binds a response obtained elsewhere; Fetch then does nothing.
func (r *Resource) SetResponse(resp *transport.Response) {
	r.resp = resp
	r.closed = false
	r.result.StatusCode = resp.StatusCode
}

// Fetch requests the resource unless a response is already bound.
// Kinds that never download return nil without I/O.
func (r *Resource) Fetch(ctx context.Context) error {
	if r.resp != nil || !r.kind.Downloads() {
		return nil
	}

	u, err := url.Parse(r.ctx.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if !isFetchable(u) {
		return fmt.Errorf("%w: %q", ErrInvalidURL, r.ctx.URL)
	}

	if p := r.sess.Policy; p != nil {
		if !p.IsAllowed(ctx, r.ctx.URL, r.sess.UserAgent) {
			return fmt.Errorf("%w: %s", ErrAccessDenied, r.ctx.URL)
		}
		if err := p.Wait(ctx, r.ctx.URL); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}

	resp, err := r.sess.Transport.Request(ctx, http.MethodGet, r.ctx.URL, r.sess.header(r.ctx.URL))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	r.SetResponse(resp)
	return nil
}

// Retrieve fetches the resource if needed, mirrors its children and saves
// it. The response body is closed when Retrieve returns.
func (r *Resource) Retrieve(ctx context.Context) error {
	if !r.kind.Downloads() {
		return nil
	}
	if err := r.Fetch(ctx); err != nil {
		return err
	}
	defer r.Close()

	switch r.kind {
	case KindHTML:
		return r.retrieveHTML(ctx)
	case KindCSS, KindJS:
		return r.retrieveText(ctx)
	case KindGenericOnly:
		return r.retrieveGenericOnly()
	case KindBase64:
		return r.retrieveBase64()
	default:
		return r.retrieveGeneric(r.resp.Body)
	}
}

// Resolve returns the reference to write into a parent saved at
// parentPath: a slash-separated relative path, the absolute URL for
// detached or non-downloading kinds, or a data URI for KindBase64.
func (r *Resource) Resolve(parentPath string) string {
	switch {
	case r.detached || !r.kind.Downloads():
		return r.ctx.URL
	case r.kind == KindBase64:
		if r.dataURI != "" {
			return r.dataURI
		}
		return r.ctx.URL
	}
	path, err := r.Filepath()
	if err != nil {
		return r.ctx.URL
	}
	return urlpath.Relative(path, parentPath)
}

// KeepsExistingFile reports whether a file is already saved at the
// resource's path and overwriting is off, so fetching it is wasted work.
func (r *Resource) KeepsExistingFile() bool {
	if !r.kind.Saves() || r.sess.Store == nil || r.sess.Store.Overwrite() {
		return false
	}
	path, err := r.Filepath()
	if err != nil {
		return false
	}
	return r.sess.Store.Exists(path)
}

// Aliases returns every URL the resource is known by: the requested URL
// and, after Fetch, each redirect hop and the final URL.
func (r *Resource) Aliases() []string {
	aliases := []string{r.ctx.URL}
	if r.resp == nil {
		return aliases
	}
	for _, a := range r.resp.Aliases() {
		if a != r.ctx.URL {
			aliases = append(aliases, a)
		}
	}
	return aliases
}

// WritePlaceholder saves a short notice describing cause in place of the
// resource's content.
func (r *Resource) WritePlaceholder(cause error) error {
	if !r.kind.Saves() {
		return nil
	}
	path, err := r.Filepath()
	if err != nil {
		return err
	}
	notice := fmt.Sprintf("pagemirror: could not retrieve %s: %v\n", r.ctx.URL, cause)
	n, err := r.sess.Store.Persist(path, strings.NewReader(notice))
	if err != nil && !errors.Is(err, storage.ErrExists) {
		return fmt.Errorf("failed to write placeholder: %w", err)
	}
	r.result.Bytes = n
	r.result.Placeholder = true
	return nil
}

// Close releases the response body. It is safe to call more than once.
func (r *Resource) Close() {
	if r.resp == nil || r.closed {
		return
	}
	r.closed = true
	if r.body != nil {
		_ = r.body.Close()
	}
	_ = r.resp.Body.Close()
}

// rewindable wraps the response body so it can be read a second time
// after parsing.
func (r *Resource) rewindable() *buffer.Rewindable {
	if r.body == nil {
		r.body = buffer.New(r.resp.Body)
	}
	return r.body
}

// finalURL is the URL references in the body are relative to.
func (r *Resource) finalURL() *url.URL {
	raw := r.ctx.URL
	if r.resp != nil && r.resp.FinalURL != "" {
		raw = r.resp.FinalURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
