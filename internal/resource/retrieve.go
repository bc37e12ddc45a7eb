package resource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/pagemirror/internal/extract"
	"github.com/nao1215/pagemirror/internal/storage"
	"golang.org/x/crypto/blake2b"
)

// sniffLen is the number of bytes http.DetectContentType looks at.
const sniffLen = 512

func (r *Resource) retrieveHTML(ctx context.Context) error {
	if r.resp.IsError() || !isHTML(r.resp.ContentType()) {
		return r.retrieveGeneric(r.resp.Body)
	}
	parentPath, err := r.Filepath()
	if err != nil {
		return err
	}

	body := r.rewindable()
	doc, err := extract.Parse(body, r.resp.Header.Get("Content-Type"))
	if err != nil {
		r.sess.logger().Warn("falling back to an empty document", "url", r.ctx.URL, "error", err)
		doc = extract.Empty()
	}

	base := r.finalURL()
	if href := doc.Base(); href != "" {
		if ref, err := url.Parse(href); err == nil {
			base = base.ResolveReference(ref)
		}
		doc.DropBase()
	}

	for occ := range doc.Links() {
		if err := ctx.Err(); err != nil {
			break
		}
		rel, ok := r.follow(ctx, base, occ.Tag, occ.URL, parentPath)
		if !ok {
			continue
		}
		if occ.Element.ReplaceURL(occ.URL, rel, occ.Attr, occ.Pos) {
			occ.Element.RemoveAttr("integrity")
			occ.Element.RemoveAttr("crossorigin")
		}
	}

	doc.Watermark(r.watermark())
	var out bytes.Buffer
	if err := doc.Render(&out); err != nil {
		return fmt.Errorf("failed to render %s: %w", r.ctx.URL, err)
	}
	if err := r.persist(parentPath, &out); err != nil {
		return err
	}
	r.result.Digest = r.sourceDigest()
	return nil
}

// retrieveText mirrors the url() and @import references of a stylesheet
// or script.
func (r *Resource) retrieveText(ctx context.Context) error {
	if r.resp.IsError() || !isText(r.resp.ContentType()) {
		return r.retrieveGeneric(r.resp.Body)
	}
	parentPath, err := r.Filepath()
	if err != nil {
		return err
	}

	body := r.rewindable()
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrTransport, r.ctx.URL, err)
	}

	text := string(data)
	base := r.finalURL()
	rewritten := extract.RewriteCSS(text, extract.ScanCSS(text), func(ref extract.TextRef) (string, bool) {
		if ctx.Err() != nil {
			return "", false
		}
		return r.follow(ctx, base, ref.Tag(), ref.URL, parentPath)
	})

	if err := r.persist(parentPath, strings.NewReader(rewritten)); err != nil {
		return err
	}
	r.result.Digest = r.sourceDigest()
	return nil
}

// follow hands one reference to the Handler and returns the replacement
// text for it.
func (r *Resource) follow(ctx context.Context, base *url.URL, tag, rawRef, parentPath string) (string, bool) {
	h := r.sess.Handler
	if h == nil || !h.ValidateURL(rawRef) {
		return "", false
	}
	target, fragment, ok := resolveRef(base, rawRef)
	if !ok {
		return "", false
	}

	child := New(r.ctx.With(target), h.KindFor(tag), r.sess, r.depth+1)
	h.Handle(ctx, child)

	rel := child.Resolve(parentPath)
	if rel == "" {
		return "", false
	}
	if fragment != "" {
		rel += "#" + fragment
	}
	return rel, true
}

func (r *Resource) retrieveGeneric(src io.Reader) error {
	path, err := r.Filepath()
	if err != nil {
		return err
	}
	if r.resp.IsError() {
		return r.WritePlaceholder(fmt.Errorf("HTTP %d %s", r.resp.StatusCode, http.StatusText(r.resp.StatusCode)))
	}

	h := newDigest()
	if err := r.persist(path, io.TeeReader(src, h)); err != nil {
		return err
	}
	if !r.result.Skipped {
		r.result.Digest = hex.EncodeToString(h.Sum(nil))
	}
	return nil
}

// retrieveGenericOnly saves the body unless it is an HTML document.
func (r *Resource) retrieveGenericOnly() error {
	if ct := r.resp.ContentType(); ct != "" && !r.resp.IsError() && isHTML(ct) {
		r.result.Skipped = true
		return nil
	}
	br := bufio.NewReaderSize(r.resp.Body, sniffLen)
	head, _ := br.Peek(sniffLen) //nolint:errcheck // short bodies are sniffed as they are
	if !r.resp.IsError() && strings.HasPrefix(http.DetectContentType(head), "text/html") {
		r.result.Skipped = true
		return nil
	}
	return r.retrieveGeneric(br)
}

// retrieveBase64 keeps the body in memory as a data URI.
func (r *Resource) retrieveBase64() error {
	if r.resp.IsError() {
		return nil
	}
	data, err := io.ReadAll(r.resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrTransport, r.ctx.URL, err)
	}
	mediaType := mediaTypeOf(r.resp.ContentType())
	if mediaType == "" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(data)) //nolint:errcheck // DetectContentType output always parses
	}
	r.dataURI = "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)

	h := newDigest()
	h.Write(data) //nolint:errcheck // hash writes never fail
	r.result.Digest = hex.EncodeToString(h.Sum(nil))
	return nil
}

func (r *Resource) persist(path string, src io.Reader) error {
	n, err := r.sess.Store.Persist(path, src)
	switch {
	case errors.Is(err, storage.ErrExists):
		r.result.Skipped = true
		return nil
	case err != nil:
		return fmt.Errorf("failed to save %s: %w", r.ctx.URL, err)
	}
	r.result.Bytes = n
	return nil
}

// sourceDigest hashes the body as downloaded, before any rewriting.
func (r *Resource) sourceDigest() string {
	if r.body == nil || r.body.Drain() != nil || r.body.Rewind() != nil {
		return ""
	}
	h := newDigest()
	if _, err := io.Copy(h, r.body); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Resource) watermark() string {
	version := r.sess.Version
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf(" Mirrored by pagemirror %s from %s at %s ",
		version, r.ctx.URL, r.sess.now().UTC().Format(time.RFC3339))
}

// resolveRef resolves rawRef against base and splits off the fragment.
func resolveRef(base *url.URL, rawRef string) (string, string, bool) {
	ref, err := url.Parse(strings.TrimSpace(rawRef))
	if err != nil {
		return "", "", false
	}
	u := base.ResolveReference(ref)
	if !isFetchable(u) {
		return "", "", false
	}
	fragment := u.EscapedFragment()
	u.Fragment, u.RawFragment = "", ""
	return u.String(), fragment, true
}

func newDigest() hash.Hash {
	h, _ := blake2b.New256(nil) //nolint:errcheck // only fails for keys longer than 64 bytes
	return h
}

func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mediaType
}

// isHTML treats a missing content type as HTML.
func isHTML(contentType string) bool {
	switch mediaTypeOf(contentType) {
	case "text/html", "application/xhtml+xml":
		return true
	case "":
		return strings.TrimSpace(contentType) == ""
	default:
		return false
	}
}

func isText(contentType string) bool {
	mt := mediaTypeOf(contentType)
	switch {
	case mt == "":
		return strings.TrimSpace(contentType) == ""
	case strings.HasPrefix(mt, "text/"):
		return true
	default:
		return strings.Contains(mt, "javascript") || strings.Contains(mt, "ecmascript") ||
			strings.HasSuffix(mt, "json") || strings.HasSuffix(mt, "css")
	}
}
