package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/pagemirror/internal/storage"
	"github.com/nao1215/pagemirror/internal/transport"
	"github.com/nao1215/pagemirror/internal/urlpath"
)

// inlineHandler processes every child synchronously and deduplicates by URL.
type inlineHandler struct {
	kinds map[string]Kind

	mu   sync.Mutex
	seen map[string]string
}

func newInlineHandler(kinds map[string]Kind) *inlineHandler {
	return &inlineHandler{kinds: kinds, seen: make(map[string]string)}
}

func (h *inlineHandler) KindFor(tag string) Kind {
	if k, ok := h.kinds[tag]; ok {
		return k
	}
	return KindGeneric
}

func (h *inlineHandler) ValidateURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw != "" && !strings.HasPrefix(raw, "#") &&
		!strings.HasPrefix(raw, "data:") && !strings.HasPrefix(raw, "javascript:")
}

func (h *inlineHandler) Handle(ctx context.Context, r *Resource) {
	if !r.Kind().Downloads() {
		return
	}
	h.mu.Lock()
	if path, ok := h.seen[r.URL()]; ok {
		h.mu.Unlock()
		r.BindPath(path)
		return
	}
	path, err := r.Filepath()
	if err == nil {
		h.seen[r.URL()] = path
	}
	h.mu.Unlock()

	if err != nil {
		r.Detach()
		return
	}
	_ = r.Retrieve(ctx) //nolint:errcheck // outcome is inspected through files
}

type denyPolicy struct{}

func (denyPolicy) IsAllowed(context.Context, string, string) bool { return false }
func (denyPolicy) Wait(context.Context, string) error             { return nil }

type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (c *hitCounter) add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[path]++
}

func (c *hitCounter) get(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[path]
}

const samplePage = `<!DOCTYPE html>
<html><head><title>Sample</title>
<link rel="stylesheet" href="/css/site.css" integrity="sha384-abc" crossorigin="anonymous">
</head><body>
<img src="logo.png" srcset="logo.png 1x, logo-2x.png 2x">
<a href="https://elsewhere.example/page#top">out</a>
<a href="#local">local</a>
<img src="missing.png" alt="gone">
</body></html>`

func newSiteServer(t *testing.T) (*httptest.Server, *hitCounter) {
	t.Helper()

	counter := &hitCounter{hits: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		counter.add(r.URL.Path)
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, samplePage)
		case "/css/site.css":
			w.Header().Set("Content-Type", "text/css")
			fmt.Fprint(w, `body { background: url(/img/bg.png); }`)
		case "/img/bg.png", "/logo.png", "/logo-2x.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("\x89PNG\r\n\x1a\n")) //nolint:errcheck
		case "/soft404.bin":
			w.Header().Set("Content-Type", "application/octet-stream")
			fmt.Fprint(w, "<!DOCTYPE html><html><body>not found</body></html>")
		case "/moved":
			http.Redirect(w, r, "/logo.png", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, counter
}

func newSession(t *testing.T, h Handler) *Session {
	t.Helper()

	client, err := transport.New()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return &Session{
		Transport: client,
		Store:     storage.NewDisk(true),
		Handler:   h,
		UserAgent: "pagemirror-test",
		Version:   "test",
		Now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func newRoot(t *testing.T, rawURL string, kind Kind, sess *Session) *Resource {
	t.Helper()

	c, err := NewContext(rawURL, t.TempDir(), urlpath.Hierarchical)
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}
	return New(c, kind, sess, 0)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestRetrieveHTML(t *testing.T) {
	t.Parallel()

	server, counter := newSiteServer(t)
	h := newInlineHandler(map[string]Kind{
		"link":    KindCSS,
		"img":     KindGeneric,
		"a":       KindAbsoluteURL,
		"css:url": KindGeneric,
	})
	root := newRoot(t, server.URL+"/", KindHTML, newSession(t, h))

	if err := root.Retrieve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rootPath, err := root.Filepath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(rootPath) != "index.html" {
		t.Errorf("expected index.html, got %s", rootPath)
	}
	dir := filepath.Dir(rootPath)
	page := readFile(t, rootPath)

	for _, want := range []string{
		`href="css/site.css"`,
		`src="logo.png"`,
		`srcset="logo.png 1x, logo-2x.png 2x"`,
		`href="https://elsewhere.example/page#top"`,
		`href="#local"`,
		`Mirrored by pagemirror test from ` + server.URL + `/ at 2026-01-02T03:04:05Z`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("expected page to contain %q\n%s", want, page)
		}
	}
	if strings.Contains(page, "integrity") || strings.Contains(page, "crossorigin") {
		t.Error("expected integrity and crossorigin to be removed")
	}

	css := readFile(t, filepath.Join(dir, "css", "site.css"))
	if !strings.Contains(css, "url(../img/bg.png)") {
		t.Errorf("expected rewritten stylesheet, got %q", css)
	}
	if _, err := os.Stat(filepath.Join(dir, "img", "bg.png")); err != nil {
		t.Errorf("expected background image to be saved: %v", err)
	}
	if counter.get("/logo.png") != 1 {
		t.Errorf("expected logo.png to be fetched once, got %d", counter.get("/logo.png"))
	}
	if !strings.Contains(readFile(t, filepath.Join(dir, "missing.png")), "HTTP 404") {
		t.Error("expected placeholder for missing asset")
	}

	res := root.Result()
	if res.StatusCode != http.StatusOK || res.Bytes == 0 || len(res.Digest) != 64 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRetrieveHTMLWithBase(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><base href="/assets/"></head><body><img src="a.png"></body></html>`)
	})
	mux.HandleFunc("/assets/a.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, "png")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	root := newRoot(t, server.URL+"/", KindHTML, newSession(t, newInlineHandler(nil)))
	if err := root.Retrieve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rootPath, _ := root.Filepath() //nolint:errcheck
	page := readFile(t, rootPath)
	if !strings.Contains(page, `src="assets/a.png"`) {
		t.Errorf("expected reference resolved against <base>, got\n%s", page)
	}
	if strings.Contains(page, `href="/assets/"`) {
		t.Error("expected <base> href to be dropped")
	}
}

func TestRetrieveGenericErrorStatus(t *testing.T) {
	t.Parallel()

	server, _ := newSiteServer(t)
	r := newRoot(t, server.URL+"/nothing-here.png", KindGeneric, newSession(t, nil))

	if err := r.Retrieve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Result().Placeholder {
		t.Error("expected placeholder result")
	}
	path, _ := r.Filepath() //nolint:errcheck
	if got := readFile(t, path); !strings.Contains(got, "HTTP 404 Not Found") {
		t.Errorf("unexpected placeholder: %q", got)
	}
}

func TestRetrieveGenericOnlySkipsHTML(t *testing.T) {
	t.Parallel()

	server, _ := newSiteServer(t)

	tests := []struct {
		name    string
		path    string
		skipped bool
	}{
		{name: "declared html", path: "/", skipped: true},
		{name: "sniffed html", path: "/soft404.bin", skipped: true},
		{name: "image", path: "/logo.png", skipped: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newRoot(t, server.URL+tt.path, KindGenericOnly, newSession(t, nil))
			if err := r.Retrieve(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Result().Skipped != tt.skipped {
				t.Errorf("expected skipped=%v, got %+v", tt.skipped, r.Result())
			}
			path, _ := r.Filepath() //nolint:errcheck
			_, err := os.Stat(path)
			if tt.skipped && err == nil {
				t.Error("expected no file for skipped resource")
			}
			if !tt.skipped && err != nil {
				t.Errorf("expected file to be saved: %v", err)
			}
		})
	}
}

func TestRetrieveBase64(t *testing.T) {
	t.Parallel()

	server, _ := newSiteServer(t)
	r := newRoot(t, server.URL+"/logo.png", KindBase64, newSession(t, nil))

	if err := r.Retrieve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := r.Resolve("/anywhere/index.html")
	if got != "data:image/png;base64,iVBORw0KGgo=" {
		t.Errorf("unexpected data uri: %q", got)
	}
	path, _ := r.Filepath() //nolint:errcheck
	if _, err := os.Stat(path); err == nil {
		t.Error("expected base64 resource to not be saved")
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	sess := newSession(t, nil)
	c, err := NewContext("https://example.com/docs/", "/mirror", urlpath.Hierarchical)
	if err != nil {
		t.Fatal(err)
	}
	parent := filepath.FromSlash("/mirror/example.com/docs/index.html")

	tests := []struct {
		name string
		res  func() *Resource
		want string
	}{
		{
			name: "relative path",
			res:  func() *Resource { return New(c.With("https://example.com/img/logo.png"), KindGeneric, sess, 1) },
			want: "../img/logo.png",
		},
		{
			name: "absolute url kind",
			res:  func() *Resource { return New(c.With("https://other.example/x"), KindAbsoluteURL, sess, 1) },
			want: "https://other.example/x",
		},
		{
			name: "void kind",
			res:  func() *Resource { return New(c.With("https://example.com/v.js"), KindVoid, sess, 1) },
			want: "https://example.com/v.js",
		},
		{
			name: "detached",
			res: func() *Resource {
				r := New(c.With("https://example.com/page.html"), KindHTML, sess, 1)
				r.Detach()
				return r
			},
			want: "https://example.com/page.html",
		},
		{
			name: "bound path",
			res: func() *Resource {
				r := New(c.With("https://example.com/alias"), KindHTML, sess, 1)
				r.BindPath(filepath.FromSlash("/mirror/example.com/docs/real.html"))
				return r
			},
			want: "real.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.res().Resolve(parent); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	server, _ := newSiteServer(t)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name   string
		url    string
		policy Policy
		want   error
	}{
		{name: "unsupported scheme", url: "ftp://example.com/file", want: ErrInvalidURL},
		{name: "denied by policy", url: server.URL + "/logo.png", policy: denyPolicy{}, want: ErrAccessDenied},
		{name: "connection refused", url: closedURL + "/x.png", want: ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess := newSession(t, nil)
			sess.Policy = tt.policy
			c := Context{URL: tt.url, BaseURL: tt.url, BasePath: t.TempDir()}
			r := New(c, KindGeneric, sess, 0)

			if err := r.Fetch(context.Background()); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFetchSkipsNonDownloadingKinds(t *testing.T) {
	t.Parallel()

	sess := newSession(t, nil)
	sess.Policy = denyPolicy{}
	for _, kind := range []Kind{KindVoid, KindAbsoluteURL} {
		r := New(Context{URL: "https://example.com/"}, kind, sess, 0)
		if err := r.Fetch(context.Background()); err != nil {
			t.Errorf("%s: expected no error, got %v", kind, err)
		}
		if r.Response() != nil {
			t.Errorf("%s: expected no response", kind)
		}
	}
}

func TestAliases(t *testing.T) {
	t.Parallel()

	server, _ := newSiteServer(t)
	r := newRoot(t, server.URL+"/moved", KindGeneric, newSession(t, nil))
	if err := r.Fetch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	got := r.Aliases()
	want := []string{server.URL + "/moved", server.URL + "/logo.png"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("alias %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestWritePlaceholder(t *testing.T) {
	t.Parallel()

	sess := newSession(t, nil)
	c, err := NewContext("https://example.com/a.png", t.TempDir(), urlpath.Linear)
	if err != nil {
		t.Fatal(err)
	}
	r := New(c, KindGeneric, sess, 0)

	if err := r.WritePlaceholder(ErrTransport); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, _ := r.Filepath() //nolint:errcheck
	if got := readFile(t, path); !strings.Contains(got, "https://example.com/a.png") {
		t.Errorf("unexpected placeholder: %q", got)
	}
}

func TestNewContext(t *testing.T) {
	t.Parallel()

	c, err := NewContext("https://example.com/start", "relative/dir", urlpath.Linear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(c.BasePath) {
		t.Errorf("expected absolute base path, got %s", c.BasePath)
	}

	child := c.WithContentType("text/html").With("https://example.com/other")
	if child.BaseURL != c.BaseURL || child.BasePath != c.BasePath || child.Layout != c.Layout {
		t.Errorf("expected child to inherit base values: %+v", child)
	}
	if child.ContentType != "" {
		t.Errorf("expected child content type to be reset, got %q", child.ContentType)
	}

	for _, bad := range []string{"", "mailto:a@example.com", "/relative"} {
		if _, err := NewContext(bad, "dir", urlpath.Hierarchical); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("NewContext(%q): expected ErrInvalidURL, got %v", bad, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for k := KindHTML; k <= KindBase64; k++ {
		got, err := ParseKind(strings.ToUpper(k.String()))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q): expected %v, got %v (%v)", k.String(), k, got, err)
		}
	}
	if _, err := ParseKind("video"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}
