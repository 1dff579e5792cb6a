package sitemapgraph

import (
	"context"
	"testing"
	"time"
)

func TestParsePagesXML_FullFieldMapping(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"
        xmlns:news="http://www.google.com/schemas/sitemap-news/0.9"
        xmlns:image="http://www.google.com/schemas/sitemap-image/1.1"
        xmlns:xhtml="http://www.w3.org/1999/xhtml">
  <url>
    <loc>https://example.com/article</loc>
    <lastmod>2026-01-15T10:00:00Z</lastmod>
    <changefreq>Weekly</changefreq>
    <priority>0.8</priority>
    <xhtml:link rel="alternate" hreflang="fr" href="https://example.com/fr/article"/>
    <news:news>
      <news:publication>
        <news:name>Example News</news:name>
        <news:language>en</news:language>
      </news:publication>
      <news:publication_date>2026-01-14T09:00:00Z</news:publication_date>
      <news:title>Big Story &amp; More</news:title>
      <news:keywords>politics, economy , sports</news:keywords>
      <news:stock_tickers>NASDAQ:ABCD</news:stock_tickers>
    </news:news>
    <image:image>
      <image:loc>https://example.com/img.jpg</image:loc>
      <image:caption>A caption</image:caption>
    </image:image>
  </url>
  <url>
    <loc>https://example.com/duplicate</loc>
  </url>
  <url>
    <loc>https://example.com/duplicate</loc>
    <priority>0.1</priority>
  </url>
</urlset>`

	n := parsePagesXML(doc, "https://example.com/sitemap.xml", nil, nil)
	if n.Kind != KindPagesXML {
		t.Fatalf("expected Pages-XML node, got %v", n.Kind)
	}
	pages, err := n.Pages()
	if err != nil {
		t.Fatalf("Pages(): %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages (duplicate collapsed), got %d: %+v", len(pages), pages)
	}

	p := pages[0]
	if p.URL != "https://example.com/article" {
		t.Fatalf("unexpected URL: %q", p.URL)
	}
	if p.ChangeFrequency != ChangeFrequencyWeekly {
		t.Fatalf("unexpected changefreq: %q", p.ChangeFrequency)
	}
	if p.Priority != 0.8 {
		t.Fatalf("unexpected priority: %v", p.Priority)
	}
	if p.LastModified == nil || !p.LastModified.Equal(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected lastmod: %v", p.LastModified)
	}
	if len(p.Alternates) != 1 || p.Alternates[0].HrefLang != "fr" {
		t.Fatalf("unexpected alternates: %+v", p.Alternates)
	}
	if len(p.Images) != 1 || p.Images[0].Loc != "https://example.com/img.jpg" || p.Images[0].Caption != "A caption" {
		t.Fatalf("unexpected images: %+v", p.Images)
	}
	if p.NewsStory == nil {
		t.Fatalf("expected news story to materialize")
	}
	if p.NewsStory.Title != "Big Story & More" {
		t.Fatalf("unexpected news title: %q", p.NewsStory.Title)
	}
	if len(p.NewsStory.Keywords) != 3 || p.NewsStory.Keywords[1] != "economy" {
		t.Fatalf("unexpected keywords: %+v", p.NewsStory.Keywords)
	}

	if pages[1].URL != "https://example.com/duplicate" {
		t.Fatalf("unexpected second page URL: %q", pages[1].URL)
	}
}

func TestParsePagesXML_NewsDroppedWithoutPublishDate(t *testing.T) {
	doc := `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" xmlns:news="http://www.google.com/schemas/sitemap-news/0.9">
  <url>
    <loc>https://example.com/a</loc>
    <news:news>
      <news:title>No Date Story</news:title>
    </news:news>
  </url>
</urlset>`
	n := parsePagesXML(doc, "https://example.com/sitemap.xml", nil, nil)
	pages, _ := n.Pages()
	if len(pages) != 1 {
		t.Fatalf("expected the page to survive, got %d", len(pages))
	}
	if pages[0].NewsStory != nil {
		t.Fatalf("news story should be dropped without a publish date")
	}
}

func TestParsePagesXML_InvalidPriorityFallsBackTo0_5(t *testing.T) {
	doc := `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc><priority>bogus</priority></url>
  <url><loc>https://example.com/b</loc><priority>2.5</priority></url>
</urlset>`
	n := parsePagesXML(doc, "https://example.com/sitemap.xml", nil, nil)
	pages, _ := n.Pages()
	if pages[0].Priority != 0.5 || pages[1].Priority != 0.5 {
		t.Fatalf("expected 0.5 fallback, got %+v", pages)
	}
}

func TestParsePagesXML_TruncatedDocumentKeepsCompletedEntries(t *testing.T) {
	doc := `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc></url>
  <url><loc>https://example.com/b</l`
	n := parsePagesXML(doc, "https://example.com/sitemap.xml", nil, nil)
	pages, _ := n.Pages()
	if len(pages) != 1 || pages[0].URL != "https://example.com/a" {
		t.Fatalf("expected truncation to keep the first completed entry, got %+v", pages)
	}
}

func TestParseRSS(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>Example Feed</title>
  <item>
    <link>https://example.com/post1</link>
    <title>Post One</title>
    <pubDate>Mon, 02 Jan 2026 15:04:05 +0000</pubDate>
  </item>
  <item>
    <link>https://example.com/post2</link>
    <description>Fallback description</description>
    <pubDate>Tue, 03 Jan 2026 09:00:00 +0000</pubDate>
  </item>
</channel></rss>`
	n := parseRSS(doc, "https://example.com/feed.rss", nil)
	if n.Kind != KindPagesRSS {
		t.Fatalf("expected Pages-RSS node, got %v", n.Kind)
	}
	pages, _ := n.Pages()
	if len(pages) != 2 {
		t.Fatalf("expected 2 items, got %d", len(pages))
	}
	if pages[0].NewsStory == nil || pages[0].NewsStory.Title != "Post One" {
		t.Fatalf("unexpected first item: %+v", pages[0])
	}
	if pages[1].NewsStory == nil || pages[1].NewsStory.Title != "Fallback description" {
		t.Fatalf("expected description fallback, got %+v", pages[1])
	}
}

func TestParseAtom(t *testing.T) {
	doc := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <link rel="self" href="https://example.com/canonical"/>
    <link href="https://example.com/alt"/>
    <title>Entry Title</title>
    <published>2026-02-01T00:00:00Z</published>
  </entry>
  <entry>
    <link href="https://example.com/fallback-link"/>
    <summary>Summary text</summary>
    <updated>2026-03-01T00:00:00Z</updated>
  </entry>
</feed>`
	n := parseAtom(doc, "https://example.com/feed.atom", nil)
	if n.Kind != KindPagesAtom {
		t.Fatalf("expected Pages-Atom node, got %v", n.Kind)
	}
	pages, _ := n.Pages()
	if len(pages) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(pages))
	}
	if pages[0].URL != "https://example.com/canonical" {
		t.Fatalf("expected rel=self link to win, got %q", pages[0].URL)
	}
	if pages[1].URL != "https://example.com/fallback-link" {
		t.Fatalf("expected first link href fallback, got %q", pages[1].URL)
	}
	if pages[1].NewsStory == nil || pages[1].NewsStory.Title != "Summary text" {
		t.Fatalf("expected summary fallback title, got %+v", pages[1])
	}
}

func TestParseXMLIndex_CollectsLocsAndRecurses(t *testing.T) {
	doc := `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sub1.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sub2.xml</loc></sitemap>
</sitemapindex>`
	env, cleanup := newTestEnv(t)
	defer cleanup()

	n := parseXMLIndex(context.Background(), env, doc, "https://example.com/index.xml", 0, newGuard())
	if n.Kind != KindXMLIndex {
		t.Fatalf("expected XML-index node, got %v", n.Kind)
	}
	if len(n.Children()) != 2 {
		t.Fatalf("expected 2 children, got %d", len(n.Children()))
	}
	for _, c := range n.Children() {
		if c.Kind != KindInvalid {
			t.Fatalf("expected an Invalid node from the unreachable test client, got %v", c.Kind)
		}
	}
}

func TestDispatchXML_RoutesToEachSubParser(t *testing.T) {
	env, cleanup := newTestEnv(t)
	defer cleanup()

	urlset := `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>https://example.com/a</loc></url></urlset>`
	n := dispatchXML(context.Background(), env, urlset, "https://example.com/sitemap.xml", 0, newGuard())
	if n.Kind != KindPagesXML {
		t.Fatalf("expected Pages-XML, got %v", n.Kind)
	}

	rss := `<rss version="2.0"><channel><item><link>https://example.com/a</link><title>A</title></item></channel></rss>`
	n = dispatchXML(context.Background(), env, rss, "https://example.com/feed.rss", 0, newGuard())
	if n.Kind != KindPagesRSS {
		t.Fatalf("expected Pages-RSS, got %v", n.Kind)
	}

	atom := `<feed xmlns="http://www.w3.org/2005/Atom"><entry><link href="https://example.com/a"/><title>A</title></entry></feed>`
	n = dispatchXML(context.Background(), env, atom, "https://example.com/feed.atom", 0, newGuard())
	if n.Kind != KindPagesAtom {
		t.Fatalf("expected Pages-Atom, got %v", n.Kind)
	}
}
