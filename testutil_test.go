package sitemapgraph

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// unreachableClient always reports a non-retryable failure, so tests that
// exercise recursive fetch plumbing without a real server get deterministic
// Invalid nodes instead of touching the network.
type unreachableClient struct{}

func (unreachableClient) Get(ctx context.Context, url string) (*Response, *ClientError) {
	return nil, &ClientError{Message: "no network in this test", Retryable: false}
}

func (unreachableClient) SetMaxResponseDataLength(n int64) {}

// newTestEnv builds a buildEnv suitable for unit tests: page spill and the
// fetch-dedup cache both disabled so tests don't need a temp directory,
// mirroring the teacher's habit of keeping fixtures self-contained. Its
// WebClient never touches the network.
func newTestEnv(t *testing.T) (*buildEnv, func()) {
	t.Helper()
	opts := Options{
		WebClient:         unreachableClient{},
		DisablePageSpill:  true,
		DisableFetchCache: true,
	}.withDefaults()
	return &buildEnv{opts: opts}, func() {}
}

// newTestServer starts an httptest.Server on its own net.Listen, matching
// the teacher's pattern of skipping cleanly when loopback networking isn't
// available in a sandboxed test runner.
func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: no loopback networking available: %v", err)
	}
	srv := &httptest.Server{Listener: lis, Config: &http.Server{Handler: handler}}
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
