package urlpath

import (
	"errors"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"https://example.com/", "http://example.com/x", true},
		{"https://www.example.com/", "https://example.com/", true},
		{"https://EXAMPLE.com:443/", "http://example.com:80/", true},
		{"https://example.com:8443/", "https://example.com/", false},
		{"https://example.com/", "https://cdn.example.com/", false},
		{"https://example.com/", "https://example.org/", false},
	}

	for _, tt := range tests {
		if got := SameSite(mustParse(t, tt.a), mustParse(t, tt.b)); got != tt.want {
			t.Errorf("SameSite(%q, %q): expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}

	if SameSite(nil, mustParse(t, "https://example.com/")) {
		t.Error("expected nil URL to never match")
	}
}

func TestWithinBase(t *testing.T) {
	t.Parallel()

	base := mustParse(t, "https://example.com/docs/index.html")

	tests := []struct {
		u    string
		want bool
	}{
		{"https://example.com/docs/a/b", true},
		{"https://www.example.com/docs/", true},
		{"https://example.com/blog/", false},
		{"https://other.com/docs/", false},
	}

	for _, tt := range tests {
		if got := WithinBase(base, mustParse(t, tt.u)); got != tt.want {
			t.Errorf("WithinBase(%q): expected %v, got %v", tt.u, tt.want, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.com:443/a#x", "https://example.com/a"},
		{"http://u:p@example.com", "http://example.com/"},
		{"http://example.com:8080/a?b=c", "http://example.com:8080/a?b=c"},
	}

	for _, tt := range tests {
		got, err := Normalize(tt.in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Normalize(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}

	if _, err := Normalize("/relative"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestParseLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Layout
		wantErr bool
	}{
		{"", Hierarchical, false},
		{"hierarchical", Hierarchical, false},
		{" Linear ", Linear, false},
		{"flat", Hierarchical, true},
	}

	for _, tt := range tests {
		got, err := ParseLayout(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownLayout) {
				t.Errorf("expected ErrUnknownLayout for %q, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLayout(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestResolverMemoizes(t *testing.T) {
	t.Parallel()

	r, err := NewResolver(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := Input{URL: "https://example.com/a.css", BasePath: t.TempDir()}

	first, err := r.Resolve(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Resolve(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected cached path %q, got %q", first, second)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", r.Len())
	}

	var nilResolver *Resolver
	direct, err := nilResolver.Resolve(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if direct != first {
		t.Errorf("expected nil resolver to match, got %q", direct)
	}
}
