package sitemapgraph

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/kotylevskiy/sitemapgraph/internal/fetchcache"
)

const (
	fetchMaxAttempts = 5
	fetchRetryWait   = time.Second
)

// fetchResult bundles the decoded body text with the URL it was actually
// served from, for the cycle guard's redirect check (spec §4.8 case 2).
type fetchResult struct {
	Text     string
	FinalURL string
}

// fetchDocument is the C2 fetch helper: makes up to five attempts while the
// client reports retryable errors, with a one-second wait between attempts,
// decompresses gzip when indicated, and
// decodes the body as BOM-tolerant UTF-8 with invalid sequences replaced
// rather than failing (spec §4.2).
func fetchDocument(ctx context.Context, client WebClient, cache *fetchcache.Cache, requestURL string, logger *slog.Logger) (*fetchResult, error) {
	if logger == nil {
		logger = discardLogger()
	}

	if cached, ok := cache.Get(requestURL); ok {
		return &fetchResult{Text: string(cached), FinalURL: requestURL}, nil
	}

	var lastErr error
	for attempt := 1; attempt <= fetchMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &ErrCancelled{URL: requestURL}
		}

		resp, clientErr := client.Get(ctx, requestURL)
		if clientErr != nil {
			lastErr = clientErr
			if !clientErr.Retryable || attempt == fetchMaxAttempts {
				return nil, &ErrFetchFailed{URL: requestURL, Err: clientErr}
			}
			logger.Debug("retrying fetch", "url", requestURL, "attempt", attempt, "error", clientErr.Error())
			if err := sleepCtx(ctx, fetchRetryWait); err != nil {
				return nil, &ErrCancelled{URL: requestURL}
			}
			continue
		}

		body := decompressIfNeeded(resp, logger)
		text := decodeUTF8BOMTolerant(body)

		finalURL := resp.FinalURL
		if finalURL == "" {
			finalURL = requestURL
		}
		if err := cache.Put(finalURL, []byte(text)); err != nil {
			logger.Debug("fetch cache put failed", "url", finalURL, "error", err.Error())
		}

		return &fetchResult{Text: text, FinalURL: finalURL}, nil
	}

	return nil, &ErrFetchFailed{URL: requestURL, Err: lastErr}
}

// decompressIfNeeded implements spec §4.2 step 1: gzip if the (percent-
// decoded) URL path ends with .gz, or Content-Type/Content-Encoding mention
// gzip; on gunzip failure, log and fall through with the raw body.
func decompressIfNeeded(resp *Response, logger *slog.Logger) []byte {
	if !looksGzipped(resp) {
		return resp.Body
	}
	gr, err := gzip.NewReader(bytes.NewReader(resp.Body))
	if err != nil {
		logger.Error("gzip header present but gunzip failed, using raw body", "url", resp.FinalURL, "error", err.Error())
		return resp.Body
	}
	defer gr.Close()
	decompressed, err := io.ReadAll(gr)
	if err != nil {
		logger.Error("gzip decompression failed midway, using raw body", "url", resp.FinalURL, "error", err.Error())
		return resp.Body
	}
	return decompressed
}

func looksGzipped(resp *Response) bool {
	if u, err := url.Parse(resp.FinalURL); err == nil {
		if decodedPath, derr := url.PathUnescape(u.Path); derr == nil && strings.HasSuffix(decodedPath, ".gz") {
			return true
		}
	}
	if strings.Contains(strings.ToLower(resp.HeaderValue("Content-Type")), "gzip") {
		return true
	}
	if strings.Contains(strings.ToLower(resp.HeaderValue("Content-Encoding")), "gzip") {
		return true
	}
	return false
}

// decodeUTF8BOMTolerant decodes body as UTF-8, stripping a BOM and
// replacing invalid sequences instead of failing (spec §4.2 step 2).
func decodeUTF8BOMTolerant(body []byte) string {
	reader, err := charset.NewReaderLabel("utf-8", bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil && len(decoded) == 0 {
		return string(body)
	}
	return string(bytes.TrimPrefix(decoded, []byte{0xEF, 0xBB, 0xBF}))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fetchAndDispatch fetches requestURL and hands the decoded body to the
// format dispatcher (C4), honoring the cycle guard (C8) for depth and
// ancestor checks. This is the single recursive step every parser that
// discovers child sitemap URLs (robots, XML-index) calls back into.
func fetchAndDispatch(ctx context.Context, env *buildEnv, requestURL string, depth int, g *guard) *Node {
	if err := g.checkDepth(depth, requestURL); err != nil {
		return newInvalidNode(requestURL, err.Error())
	}
	if err := g.checkAncestor(requestURL); err != nil {
		return newInvalidNode(requestURL, err.Error())
	}

	result, err := fetchDocument(ctx, env.opts.WebClient, env.fetchCache, requestURL, env.opts.Logger)
	if err != nil {
		return newInvalidNode(requestURL, fmt.Sprintf("fetch failed: %v", err))
	}
	if err := g.checkRedirect(requestURL, result.FinalURL); err != nil {
		return newInvalidNode(requestURL, err.Error())
	}

	childGuard := g.enter(result.FinalURL)
	return dispatch(ctx, env, result.Text, result.FinalURL, depth, childGuard)
}
