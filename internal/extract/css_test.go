package extract

import "testing"

func TestScanCSS(t *testing.T) {
	t.Parallel()

	text := `@import url("a.css"); @import 'b.css';
.x { background: url( img/x.png ) }
.y { src: url('') }
.z { background: URL(data:image/png;base64,AAAA) }`

	want := []TextRef{
		{URL: "a.css", Import: true},
		{URL: "b.css", Import: true},
		{URL: "img/x.png"},
		{URL: "data:image/png;base64,AAAA"},
	}

	got := ScanCSS(text)
	if len(got) != len(want) {
		t.Fatalf("expected %d refs, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i].URL != want[i].URL || got[i].Import != want[i].Import {
			t.Errorf("ref %d: expected %+v, got %+v", i, want[i], got[i])
		}
		if text[got[i].Pos:got[i].Pos+len(got[i].URL)] != got[i].URL {
			t.Errorf("ref %d: position %d does not point at %q", i, got[i].Pos, got[i].URL)
		}
	}
}

func TestRewriteCSS(t *testing.T) {
	t.Parallel()

	text := `@import "base.css"; a { background: url('img/a.png') } b { background: url(skip.png) }`
	refs := ScanCSS(text)

	got := RewriteCSS(text, refs, func(ref TextRef) (string, bool) {
		if ref.URL == "skip.png" {
			return "", false
		}
		return "local/" + ref.URL, true
	})

	want := `@import "local/base.css"; a { background: url('local/img/a.png') } b { background: url(skip.png) }`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTextRefTag(t *testing.T) {
	t.Parallel()

	if (TextRef{Import: true}).Tag() != TagCSSImport {
		t.Error("expected import tag")
	}
	if (TextRef{}).Tag() != TagCSSURL {
		t.Error("expected url tag")
	}
}
