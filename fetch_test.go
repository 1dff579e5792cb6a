package sitemapgraph

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"testing"

	"github.com/kotylevskiy/sitemapgraph/internal/fetchcache"
)

// scriptedClient replays a fixed sequence of (Response, ClientError) pairs,
// one per call, for deterministic retry-path tests.
type scriptedClient struct {
	calls     int
	responses []*Response
	errs      []*ClientError
}

func (c *scriptedClient) Get(ctx context.Context, url string) (*Response, *ClientError) {
	i := c.calls
	c.calls++
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], c.errs[i]
}

func (c *scriptedClient) SetMaxResponseDataLength(n int64) {}

func TestFetchDocument_RetriesRetryableError(t *testing.T) {
	client := &scriptedClient{
		responses: []*Response{nil, {StatusCode: 200, Body: []byte("ok"), FinalURL: "https://example.com/a"}},
		errs:      []*ClientError{{Message: "503", Retryable: true}, nil},
	}
	cache, _ := fetchcache.Open(t.TempDir())
	defer cache.Close()

	result, err := fetchDocument(context.Background(), client, cache, "https://example.com/a", nil)
	if err != nil {
		t.Fatalf("fetchDocument: %v", err)
	}
	if result.Text != "ok" {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if client.calls != 2 {
		t.Fatalf("expected one retry (2 calls), got %d", client.calls)
	}
}

func TestFetchDocument_NonRetryableFailsImmediately(t *testing.T) {
	client := &scriptedClient{
		responses: []*Response{nil},
		errs:      []*ClientError{{Message: "403", Retryable: false}},
	}
	cache, _ := fetchcache.Open(t.TempDir())
	defer cache.Close()

	_, err := fetchDocument(context.Background(), client, cache, "https://example.com/a", nil)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if client.calls != 1 {
		t.Fatalf("expected no retries, got %d calls", client.calls)
	}
}

func TestFetchDocument_GzipDecompression(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte("<urlset></urlset>"))
	gw.Close()

	client := &scriptedClient{
		responses: []*Response{{
			StatusCode: 200,
			Body:       buf.Bytes(),
			FinalURL:   "https://example.com/sitemap.xml.gz",
			Header:     http.Header{"Content-Type": []string{"application/x-gzip"}},
		}},
		errs: []*ClientError{nil},
	}
	cache, _ := fetchcache.Open(t.TempDir())
	defer cache.Close()

	result, err := fetchDocument(context.Background(), client, cache, "https://example.com/sitemap.xml.gz", nil)
	if err != nil {
		t.Fatalf("fetchDocument: %v", err)
	}
	if result.Text != "<urlset></urlset>" {
		t.Fatalf("unexpected decompressed text: %q", result.Text)
	}
}

func TestFetchDocument_GzipFallbackOnBadData(t *testing.T) {
	client := &scriptedClient{
		responses: []*Response{{
			StatusCode: 200,
			Body:       []byte("not actually gzip"),
			FinalURL:   "https://example.com/sitemap.xml.gz",
		}},
		errs: []*ClientError{nil},
	}
	cache, _ := fetchcache.Open(t.TempDir())
	defer cache.Close()

	result, err := fetchDocument(context.Background(), client, cache, "https://example.com/sitemap.xml.gz", nil)
	if err != nil {
		t.Fatalf("fetchDocument: %v", err)
	}
	if result.Text != "not actually gzip" {
		t.Fatalf("expected raw fallback body, got %q", result.Text)
	}
}

func TestFetchDocument_BOMStripped(t *testing.T) {
	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte("<urlset></urlset>")...)
	client := &scriptedClient{
		responses: []*Response{{StatusCode: 200, Body: body, FinalURL: "https://example.com/a"}},
		errs:      []*ClientError{nil},
	}
	cache, _ := fetchcache.Open(t.TempDir())
	defer cache.Close()

	result, err := fetchDocument(context.Background(), client, cache, "https://example.com/a", nil)
	if err != nil {
		t.Fatalf("fetchDocument: %v", err)
	}
	if result.Text != "<urlset></urlset>" {
		t.Fatalf("expected BOM stripped, got %q", result.Text)
	}
}

func TestFetchDocument_UsesCacheOnSecondCall(t *testing.T) {
	client := &scriptedClient{
		responses: []*Response{{StatusCode: 200, Body: []byte("first"), FinalURL: "https://example.com/a"}},
		errs:      []*ClientError{nil},
	}
	cache, _ := fetchcache.Open(t.TempDir())
	defer cache.Close()

	_, err := fetchDocument(context.Background(), client, cache, "https://example.com/a", nil)
	if err != nil {
		t.Fatalf("fetchDocument: %v", err)
	}
	result, err := fetchDocument(context.Background(), client, cache, "https://example.com/a", nil)
	if err != nil {
		t.Fatalf("fetchDocument: %v", err)
	}
	if result.Text != "first" {
		t.Fatalf("unexpected cached text: %q", result.Text)
	}
	if client.calls != 1 {
		t.Fatalf("expected the second fetch to be served from cache, client called %d times", client.calls)
	}
}
