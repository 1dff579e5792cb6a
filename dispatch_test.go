package sitemapgraph

import (
	"context"
	"testing"
)

func TestPeekNonWhitespace(t *testing.T) {
	got := peekNonWhitespace("  \n\t<?xml version=\"1.0\"?>\n<urlset>", 5)
	if got != "<?xml" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizedNamespace(t *testing.T) {
	cases := []struct {
		space, wantPrefix string
		wantNoNS          bool
	}{
		{"http://www.sitemaps.org/schemas/sitemap/0.9", "sitemap:", false},
		{"http://www.google.com/schemas/sitemap-news/0.9", "news:", false},
		{"http://www.google.com/schemas/sitemap-image/1.1", "image:", false},
		{"http://www.w3.org/1999/xhtml", "xhtml:", false},
		{"", "sitemap:", true},
		{"urn:something-else", "", false},
	}
	for _, c := range cases {
		prefix, noNS := normalizedNamespace(c.space)
		if prefix != c.wantPrefix || noNS != c.wantNoNS {
			t.Errorf("normalizedNamespace(%q) = (%q, %v), want (%q, %v)", c.space, prefix, noNS, c.wantPrefix, c.wantNoNS)
		}
	}
}

func TestDispatchXML_UnsupportedRoot(t *testing.T) {
	n := dispatchXML(context.Background(), nil, "<?xml version=\"1.0\"?><something-else/>", "https://example.com/x.xml", 0, nil)
	if n.Kind != KindInvalid {
		t.Fatalf("expected Invalid node, got %v", n.Kind)
	}
	if n.Reason() != "unsupported root element" {
		t.Fatalf("unexpected reason: %q", n.Reason())
	}
}

func TestDispatch_PlainTextFallback(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()

	n := dispatch(context.Background(), env, "https://example.com/1\nhttps://example.com/2\n", "https://example.com/urls.txt", 0, newGuard())
	if n.Kind != KindPagesText {
		t.Fatalf("expected Pages-text node, got %v", n.Kind)
	}
	pages, err := n.Pages()
	if err != nil {
		t.Fatalf("Pages(): %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
}
