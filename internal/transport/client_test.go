package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/c", http.StatusFound)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Write([]byte("body{}")) //nolint:errcheck
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100))) //nolint:errcheck
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.UserAgent() + "|" + r.Header.Get("X-Site"))) //nolint:errcheck
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func readBody(t *testing.T, resp *Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(b)
}

func TestRequestRedirectChain(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	client, err := New()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	resp, err := client.Request(context.Background(), http.MethodGet, server.URL+"/a", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := readBody(t, resp)

	if body != "body{}" {
		t.Errorf("expected final body, got %q", body)
	}
	if resp.FinalURL != server.URL+"/c" {
		t.Errorf("expected final URL %s/c, got %s", server.URL, resp.FinalURL)
	}
	wantChain := []string{server.URL + "/a", server.URL + "/b"}
	if len(resp.RedirectChain) != len(wantChain) {
		t.Fatalf("expected chain %v, got %v", wantChain, resp.RedirectChain)
	}
	for i := range wantChain {
		if resp.RedirectChain[i] != wantChain[i] {
			t.Errorf("chain[%d]: expected %s, got %s", i, wantChain[i], resp.RedirectChain[i])
		}
	}
	if got := resp.Aliases(); len(got) != 3 || got[2] != resp.FinalURL {
		t.Errorf("expected aliases to end with the final URL, got %v", got)
	}
	if resp.ContentType() != "text/css" {
		t.Errorf("expected text/css, got %q", resp.ContentType())
	}
}

func TestRequestErrorStatusIsNotAnError(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	client, err := New()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	resp, err := client.Request(context.Background(), http.MethodGet, server.URL+"/missing", nil)
	if err != nil {
		t.Fatalf("expected HTTP error status to be returned, got error %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusNotFound || !resp.IsError() {
		t.Errorf("expected 404 error status, got %d", resp.StatusCode)
	}
	if len(resp.RedirectChain) != 0 {
		t.Errorf("expected no redirects, got %v", resp.RedirectChain)
	}
}

func TestRequestConnectionFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client, err := New()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Request(context.Background(), http.MethodGet, addr, nil); err == nil {
		t.Error("expected connection error")
	}
}

func TestRequestTooManyRedirects(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	client, err := New()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := client.Request(context.Background(), http.MethodGet, server.URL+"/loop", nil); err == nil {
		t.Error("expected redirect loop to fail")
	}
}

func TestRequestMaxBodySize(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{name: "body over the limit", limit: 10, wantErr: true},
		{name: "body exactly at the limit", limit: 100},
		{name: "body under the limit", limit: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := New(WithMaxBodySize(tt.limit))
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}
			resp, err := client.Request(context.Background(), http.MethodGet, server.URL+"/big", nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if tt.wantErr {
				if !errors.Is(err, ErrBodyTooLarge) {
					t.Errorf("expected ErrBodyTooLarge, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(body) != 100 {
				t.Errorf("expected the whole 100-byte body, got %d", len(body))
			}
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	server := newTestServer(t)
	client, err := New(WithUserAgent("pagemirror-test"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	header := http.Header{}
	header.Set("X-Site", "yes")
	resp, err := client.Request(context.Background(), http.MethodGet, server.URL+"/ua", header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := readBody(t, resp); body != "pagemirror-test|yes" {
		t.Errorf("expected user agent and custom header, got %q", body)
	}
}

func TestWithProxy(t *testing.T) {
	t.Parallel()

	if _, err := New(WithProxy("127.0.0.1:9050")); err != nil {
		t.Errorf("expected valid proxy address to be accepted, got %v", err)
	}
	if _, err := New(WithProxy("not-an-address")); err == nil {
		t.Error("expected invalid proxy address to be rejected")
	}
}
