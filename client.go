package sitemapgraph

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// RetryableHTTPStatusCodes are the status codes a WebClient implementation
// should report back as retryable errors rather than permanent failures.
// Some servers return these transiently and recover on a subsequent attempt.
var RetryableHTTPStatusCodes = map[int]bool{
	http.StatusBadRequest:          true, // some servers 400 once, then work
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
	509: true, // Bandwidth Limit Exceeded (Apache/cPanel)
	598: true, // Network read timeout error
	499: true, // (nginx) Client Closed Request
	520: true, // (Cloudflare) Unknown Error
	521: true,
	522: true,
	523: true,
	524: true,
	525: true,
	526: true,
	527: true,
	530: true,
}

// Response is a successful WebClient result.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	// FinalURL is the URL actually fetched, after following redirects. An
	// implementation may leave it empty, in which case callers use the
	// requested URL; HTTPClient always sets it.
	FinalURL string
}

// HeaderValue looks a header up case-insensitively, as spec'd for C1.
func (r *Response) HeaderValue(name string) string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// ClientError is a WebClient failure: either a transport error or a non-2xx
// status the implementation chose not to treat as success.
type ClientError struct {
	Message   string
	Retryable bool
}

func (e *ClientError) Error() string {
	return e.Message
}

// WebClient is the abstract capability C1 describes: issue a GET, get back
// either a Response or a ClientError. Implementations must never panic or
// propagate transport errors as Go errors from Get -- they are reported via
// ClientError so callers can distinguish retryable from fatal failures.
type WebClient interface {
	Get(ctx context.Context, url string) (*Response, *ClientError)
	// SetMaxResponseDataLength bounds the number of body bytes a Response will
	// carry; 0 means unbounded. Requests past the cap return a truncated body.
	SetMaxResponseDataLength(n int64)
}

// DefaultUserAgent identifies this library to servers it crawls.
const DefaultUserAgent = "sitemapgraph/1.0 (+https://github.com/kotylevskiy/sitemapgraph)"

// noNetworkClient rejects every Get with a non-retryable ClientError. It
// backs SitemapFromStr, grounded on the original's LocalWebClient, which
// raises on any get() so that an index document's children surface as
// Invalid nodes instead of reaching out over the network (spec §6).
type noNetworkClient struct{}

func (noNetworkClient) Get(ctx context.Context, url string) (*Response, *ClientError) {
	return nil, &ClientError{Message: "sitemapgraph: SitemapFromStr performs no network I/O", Retryable: false}
}

func (noNetworkClient) SetMaxResponseDataLength(n int64) {}

// HTTPClient is the default WebClient, backed by net/http.
type HTTPClient struct {
	Client           *http.Client
	UserAgent        string
	maxResponseBytes int64
}

// NewHTTPClient builds an HTTPClient with sane defaults.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: DefaultUserAgent,
	}
}

func (c *HTTPClient) SetMaxResponseDataLength(n int64) {
	c.maxResponseBytes = n
}

func (c *HTTPClient) Get(ctx context.Context, url string) (*Response, *ClientError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ClientError{Message: err.Error(), Retryable: false}
	}
	userAgent := c.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ClientError{Message: err.Error(), Retryable: isRetryableTransportError(err)}
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if c.maxResponseBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxResponseBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &ClientError{Message: err.Error(), Retryable: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ClientError{
			Message:   "unexpected HTTP status " + resp.Status,
			Retryable: RetryableHTTPStatusCodes[resp.StatusCode],
		}
	}

	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   finalURL,
	}, nil
}

func isRetryableTransportError(err error) bool {
	// Connection-level failures (refused, reset, DNS) are worth a retry; a
	// context cancellation/deadline is not.
	msg := err.Error()
	return !strings.Contains(msg, "context canceled") && !strings.Contains(msg, "context deadline exceeded")
}
