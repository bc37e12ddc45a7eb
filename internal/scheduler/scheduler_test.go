package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/resource"
	"github.com/nao1215/pagemirror/internal/storage"
	"github.com/nao1215/pagemirror/internal/transport"
	"github.com/nao1215/pagemirror/internal/urlpath"
)

type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func newHitCounter() *hitCounter {
	return &hitCounter{hits: make(map[string]int)}
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

type harness struct {
	sched *Scheduler
	sess  *resource.Session
	run   *model.Run
	dir   string
}

func newHarness(t *testing.T, st Strategy, opts ...Option) *harness {
	t.Helper()

	client, err := transport.New()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	run := model.NewRun("", "test", "")
	sched := New(append([]Option{WithStrategy(st), WithRecorder(run)}, opts...)...)
	t.Cleanup(func() { _ = sched.Close(time.Second) })

	return &harness{
		sched: sched,
		sess: &resource.Session{
			Transport: client,
			Store:     storage.NewDisk(true),
			Handler:   sched,
			UserAgent: "pagemirror-test",
		},
		run: run,
		dir: t.TempDir(),
	}
}

// mirror runs rawURL as the start page and waits for every child.
func (h *harness) mirror(t *testing.T, rawURL string) *resource.Resource {
	t.Helper()

	c, err := resource.NewContext(rawURL, h.dir, urlpath.Hierarchical)
	if err != nil {
		t.Fatalf("failed to create context: %v", err)
	}
	root := resource.New(c, resource.KindHTML, h.sess, 0)
	if err := h.sched.HandleRoot(context.Background(), root); err != nil {
		t.Fatalf("unexpected root error: %v", err)
	}
	if err := h.sched.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}
	return root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func newScenarioServer(t *testing.T, counter *hitCounter) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		counter.add(r.URL.Path)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><link rel="stylesheet" href="/a.css"></head>
<body><img src="/a.css"><a href="%s/">home</a></body></html>`, server.URL)
	})
	mux.HandleFunc("/a.css", func(w http.ResponseWriter, r *http.Request) {
		counter.add(r.URL.Path)
		w.Header().Set("Content-Type", "text/css")
		fmt.Fprint(w, "body { color: black; }")
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestScenarioSharedTargetAndSelfLink(t *testing.T) {
	t.Parallel()

	for name, newStrategy := range strategies(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			counter := newHitCounter()
			server := newScenarioServer(t, counter)
			h := newHarness(t, newStrategy())

			root := h.mirror(t, server.URL+"/")

			if got := counter.get("/a.css"); got != 1 {
				t.Errorf("expected a.css to be fetched once, got %d", got)
			}
			if got := counter.get("/"); got != 1 {
				t.Errorf("expected the start page to be fetched once, got %d", got)
			}

			rootPath, _ := root.Filepath() //nolint:errcheck
			page := readFile(t, rootPath)
			if !strings.Contains(page, `href="a.css"`) || !strings.Contains(page, `src="a.css"`) {
				t.Errorf("expected both references rewritten to a.css\n%s", page)
			}
			if !strings.Contains(page, `href="`+server.URL+`/"`) {
				t.Errorf("expected the self link to stay absolute in single-page mode\n%s", page)
			}
			if len(h.run.Snapshot()) != 2 {
				t.Errorf("expected 2 recorded resources, got %+v", h.run.Snapshot())
			}
		})
	}
}

func TestNestedChildrenAreMirrored(t *testing.T) {
	t.Parallel()

	for name, newStrategy := range strategies(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, `<html><head><link rel="stylesheet" href="/a.css"></head><body></body></html>`)
			})
			mux.HandleFunc("/a.css", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/css")
				fmt.Fprint(w, `@import "/b.css"; body { background: url(/bg.png); }`)
			})
			mux.HandleFunc("/b.css", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/css")
				fmt.Fprint(w, `h1 { background: url(/deep.png); }`)
			})
			for _, img := range []string{"/bg.png", "/deep.png"} {
				mux.HandleFunc(img, func(w http.ResponseWriter, _ *http.Request) {
					// Children must outlive the stylesheet that found them.
					time.Sleep(20 * time.Millisecond)
					w.Header().Set("Content-Type", "image/png")
					fmt.Fprint(w, "png")
				})
			}
			server := httptest.NewServer(mux)
			t.Cleanup(server.Close)

			h := newHarness(t, newStrategy())
			h.mirror(t, server.URL+"/")

			entries := h.run.Snapshot()
			if len(entries) != 5 {
				t.Fatalf("expected 5 recorded resources, got %+v", entries)
			}
			for _, e := range entries {
				if e.Status != model.StatusSaved {
					t.Errorf("expected %s to be saved, got %s (%s)", e.URL, e.Status, e.Error)
					continue
				}
				if strings.HasSuffix(e.URL, ".png") && readFile(t, e.Path) != "png" {
					t.Errorf("unexpected content for %s", e.URL)
				}
			}
		})
	}
}

func TestConcurrentDistinctResources(t *testing.T) {
	t.Parallel()

	const assets = 100
	counter := newHitCounter()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		counter.add(r.URL.Path)
		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>")
			for i := range assets {
				fmt.Fprintf(w, `<img src="/img/%d.png">`, i)
			}
			fmt.Fprint(w, "</body></html>")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, r.URL.Path)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	h := newHarness(t, NewPool(8, 16))
	h.mirror(t, server.URL+"/")

	snapshot := h.sched.Index().Snapshot()
	if len(snapshot) != assets+1 {
		t.Fatalf("expected %d index entries, got %d", assets+1, len(snapshot))
	}
	paths := make(map[string]bool)
	for _, p := range snapshot {
		paths[p] = true
	}
	if len(paths) != assets+1 {
		t.Errorf("expected %d distinct paths, got %d", assets+1, len(paths))
	}

	for i := range assets {
		if got := counter.get(fmt.Sprintf("/img/%d.png", i)); got != 1 {
			t.Errorf("asset %d fetched %d times", i, got)
		}
	}
	for _, e := range h.run.Snapshot() {
		if e.Status != model.StatusSaved {
			t.Errorf("unexpected status for %s: %s (%s)", e.URL, e.Status, e.Error)
		}
		if _, err := os.Stat(e.Path); err != nil {
			t.Errorf("missing file for %s: %v", e.URL, err)
		}
	}
}

func TestChildTransportErrorKeepsParent(t *testing.T) {
	t.Parallel()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><img src="%s/broken.png"><img src="/ok.png"></body></html>`, deadURL)
	})
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, "png")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	h := newHarness(t, NewPool(2, 4))
	root := h.mirror(t, server.URL+"/")

	rootPath, _ := root.Filepath() //nolint:errcheck
	page := readFile(t, rootPath)
	if !strings.Contains(page, `src="ok.png"`) {
		t.Errorf("expected successful child to be rewritten\n%s", page)
	}

	var failed *model.Entry
	for _, e := range h.run.Snapshot() {
		if strings.HasSuffix(e.URL, "/broken.png") {
			failed = &e
		}
	}
	if failed == nil || failed.Status != model.StatusFailed {
		t.Fatalf("expected broken.png to be recorded as failed, got %+v", failed)
	}
	if !strings.Contains(readFile(t, failed.Path), "could not retrieve") {
		t.Error("expected placeholder for the failed child")
	}
}

func TestOversizedChildGetsPlaceholder(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><img src="/big.png"></body></html>`)
	})
	mux.HandleFunc("/big.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, strings.Repeat("x", 4096))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := transport.New(transport.WithMaxBodySize(1024))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	h := newHarness(t, NewSynchronous())
	h.sess.Transport = client
	h.mirror(t, server.URL+"/")

	var big *model.Entry
	for _, e := range h.run.Snapshot() {
		if strings.HasSuffix(e.URL, "/big.png") {
			big = &e
		}
	}
	if big == nil || big.Status != model.StatusFailed {
		t.Fatalf("expected big.png to be recorded as failed, got %+v", big)
	}
	if !strings.Contains(big.Error, transport.ErrBodyTooLarge.Error()) {
		t.Errorf("expected a body size error, got %q", big.Error)
	}
	if content := readFile(t, big.Path); !strings.Contains(content, "could not retrieve") {
		t.Errorf("expected a placeholder instead of a truncated file, got %q", content)
	}
}

type pathPolicy struct{ denied string }

func (p pathPolicy) IsAllowed(_ context.Context, rawURL, _ string) bool {
	return !strings.HasSuffix(rawURL, p.denied)
}

func (pathPolicy) Wait(context.Context, string) error { return nil }

func TestDeniedChild(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><img src="/secret.png"></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	h := newHarness(t, NewSynchronous())
	h.sess.Policy = pathPolicy{denied: "/secret.png"}
	h.mirror(t, server.URL+"/")

	entries := h.run.Snapshot()
	var denied int
	for _, e := range entries {
		if e.Status == model.StatusDenied {
			denied++
		}
	}
	if denied != 1 {
		t.Errorf("expected one denied entry, got %+v", entries)
	}
}

func TestDeniedRootIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, NewSynchronous())
	h.sess.Policy = pathPolicy{denied: "/"}

	c, err := resource.NewContext("http://127.0.0.1:1/", h.dir, urlpath.Hierarchical)
	if err != nil {
		t.Fatal(err)
	}
	err = h.sched.HandleRoot(context.Background(), resource.New(c, resource.KindHTML, h.sess, 0))
	if !errors.Is(err, resource.ErrAccessDenied) {
		t.Errorf("expected access denied, got %v", err)
	}
}

type memoryCache struct {
	paths  map[string]string
	stored []model.Entry
	mu     sync.Mutex
}

func (c *memoryCache) Lookup(_ context.Context, rawURL string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.paths[rawURL]
	return p, ok
}

func (c *memoryCache) Store(_ context.Context, e model.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = append(c.stored, e)
	return nil
}

func TestCacheSkipsKnownAssets(t *testing.T) {
	t.Parallel()

	counter := newHitCounter()
	server := newScenarioServer(t, counter)

	cache := &memoryCache{paths: make(map[string]string)}
	h := newHarness(t, NewSynchronous(), WithCache(cache), WithRegistry(func() *Registry {
		r := NewRegistry(false)
		r.Set("link", resource.KindGeneric)
		return r
	}()))

	c, err := resource.NewContext(server.URL+"/a.css", h.dir, urlpath.Hierarchical)
	if err != nil {
		t.Fatal(err)
	}
	cssPath, err := resource.New(c, resource.KindGeneric, h.sess, 1).Filepath()
	if err != nil {
		t.Fatal(err)
	}
	cache.paths[server.URL+"/a.css"] = cssPath

	h.mirror(t, server.URL+"/")

	if got := counter.get("/a.css"); got != 0 {
		t.Errorf("expected cached asset to not be fetched, got %d", got)
	}
	var cached int
	for _, e := range h.run.Snapshot() {
		if e.Status == model.StatusCached {
			cached++
		}
	}
	if cached != 1 {
		t.Errorf("expected one cached entry, got %d", cached)
	}
	if len(cache.stored) != 1 || cache.stored[0].Kind != "html" {
		t.Errorf("expected only the page to be stored, got %+v", cache.stored)
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	s := New()
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/a.png", true},
		{"//cdn.example.com/lib.js", true},
		{"img/a.png", true},
		{"?page=2", true},
		{"", false},
		{"   ", false},
		{"#section", false},
		{"data:image/png;base64,AAAA", false},
		{"javascript:void(0)", false},
		{"mailto:someone@example.com", false},
		{"tel:+123456", false},
		{"ftp://example.com/file", false},
		{"http://[::1", false},
	}
	for _, tt := range tests {
		if got := s.ValidateURL(tt.url); got != tt.want {
			t.Errorf("ValidateURL(%q): expected %v, got %v", tt.url, tt.want, got)
		}
	}
}

func TestValidateResource(t *testing.T) {
	t.Parallel()

	sess := &resource.Session{}
	c, err := resource.NewContext("https://example.com/docs/", "/mirror", urlpath.Hierarchical)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		block bool
		res   *resource.Resource
		want  bool
	}{
		{"nil", false, nil, false},
		{"void", false, resource.New(c.With("https://example.com/x.js"), resource.KindVoid, sess, 1), false},
		{"asset", true, resource.New(c.With("https://cdn.other.com/x.js"), resource.KindJS, sess, 1), true},
		{"page under base", true, resource.New(c.With("http://www.example.com/docs/a.html"), resource.KindHTML, sess, 1), true},
		{"page outside base dir", true, resource.New(c.With("https://example.com/blog/"), resource.KindHTML, sess, 1), false},
		{"page on other site", true, resource.New(c.With("https://other.com/docs/"), resource.KindHTML, sess, 1), false},
		{"other site without blocking", false, resource.New(c.With("https://other.com/"), resource.KindHTML, sess, 1), true},
		{"no host", false, resource.New(c.With("https:///path"), resource.KindGeneric, sess, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New(WithBlockCrossDomain(tt.block))
			if got := s.ValidateResource(tt.res); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	single := NewRegistry(false)
	crawl := NewRegistry(true)

	tests := []struct {
		tag           string
		single, crawl resource.Kind
	}{
		{"link", resource.KindCSS, resource.KindCSS},
		{"style", resource.KindCSS, resource.KindCSS},
		{"script", resource.KindJS, resource.KindJS},
		{"IMG", resource.KindGeneric, resource.KindGeneric},
		{"meta", resource.KindGeneric, resource.KindGeneric},
		{"a", resource.KindAbsoluteURL, resource.KindHTML},
		{"form", resource.KindAbsoluteURL, resource.KindHTML},
		{"iframe", resource.KindAbsoluteURL, resource.KindHTML},
		{"css:import", resource.KindCSS, resource.KindCSS},
		{"blink", resource.KindGeneric, resource.KindGeneric},
	}
	for _, tt := range tests {
		if got := single.KindFor(tt.tag); got != tt.single {
			t.Errorf("single-page %s: expected %s, got %s", tt.tag, tt.single, got)
		}
		if got := crawl.KindFor(tt.tag); got != tt.crawl {
			t.Errorf("crawl %s: expected %s, got %s", tt.tag, tt.crawl, got)
		}
	}

	single.Disable("script")
	single.Set("img", resource.KindBase64)
	single.SetFallback(resource.KindVoid)
	if single.KindFor("script") != resource.KindVoid || single.KindFor("img") != resource.KindBase64 {
		t.Error("expected overrides to apply")
	}
	if single.KindFor("blink") != resource.KindVoid {
		t.Error("expected fallback override to apply")
	}
	if crawl.Kinds()["script"] != resource.KindJS {
		t.Error("expected registries to be independent")
	}
}
