package sitemapgraph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kotylevskiy/sitemapgraph/internal/fetchcache"
	"github.com/kotylevskiy/sitemapgraph/internal/pagestore"
)

// knownSitemapPaths is the fixed well-known-path set probed in step 4 of
// the tree entry point (spec §4.9), in the order they're tried.
var knownSitemapPaths = []string{
	"sitemap.xml",
	"sitemap.xml.gz",
	"sitemap_index.xml",
	"sitemap-index.xml",
	"sitemap_index.xml.gz",
	"sitemap-index.xml.gz",
	".sitemap.xml",
	"sitemap",
	"admin/config/search/xmlsitemap",
	"sitemap/sitemap-index.xml",
	"sitemap_news.xml",
	"sitemap-news.xml",
	"sitemap_news.xml.gz",
	"sitemap-news.xml.gz",
}

// buildEnv threads the resources shared across one tree build: resolved
// Options, the page spool, and the fetch-dedup cache.
type buildEnv struct {
	opts       Options
	pageStore  *pagestore.Store
	fetchCache *fetchcache.Cache
}

func (e *buildEnv) logger() *slog.Logger {
	return e.opts.Logger
}

// SitemapTreeForHomepage is the C9 entry point: discovers and parses the
// full sitemap graph reachable from homepage and returns its synthetic
// Website-index root. Callers should call Close on the returned Node once
// done traversing it, to release the on-disk page spool.
func SitemapTreeForHomepage(ctx context.Context, homepage string, opts Options) (*Node, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !isHTTPURL(homepage) {
		return nil, &ErrInvalidURL{URL: homepage}
	}
	opts = opts.withDefaults()

	normalized, base, err := normalizeHomepageForDiscovery(homepage, opts.normalizeHomepage())
	if err != nil {
		return nil, err
	}

	env, err := newBuildEnv(opts)
	if err != nil {
		return nil, err
	}
	if env.fetchCache != nil {
		defer env.fetchCache.Close()
	}

	var collected []*Node
	seen := make(map[string]bool)
	g := newGuard()

	if opts.useRobots() {
		robotsURL := base + "robots.txt"
		robotsNode := fetchAndDispatch(ctx, env, robotsURL, 0, g)
		collected = append(collected, robotsNode)
		seen[robotsURL] = true
		for s := range robotsNode.AllSitemaps() {
			seen[s.URL] = true
		}
		seen[robotsNode.URL] = true
	}

	if opts.useKnownPaths() {
		paths := append(append([]string{}, knownSitemapPaths...), opts.ExtraKnownPaths...)
		for _, p := range paths {
			candidate := base + p
			if seen[candidate] {
				continue
			}
			node := fetchAndDispatch(ctx, env, candidate, 0, g)
			// node.URL is the post-redirect URL; a probe that redirects to
			// a sitemap already collected is dropped.
			if node.Kind != KindInvalid && !seen[node.URL] {
				collected = append(collected, node)
				seen[node.URL] = true
			}
			seen[candidate] = true
		}
	}

	root := newIndexNode(KindWebsiteIndex, normalized, collected)
	root.store = env.pageStore
	return root, nil
}

// SitemapFromStr parses content (already fetched by the caller) as if it
// had been retrieved from url, without performing any network I/O itself.
// An index document's children therefore materialize as Invalid nodes,
// since no further fetch is possible (spec §6). Useful for tests and for
// callers who already hold the document bytes.
func SitemapFromStr(content, url string) (*Node, error) {
	opts := Options{
		WebClient:         noNetworkClient{},
		DisablePageSpill:  true,
		DisableFetchCache: true,
	}.withDefaults()
	env, err := newBuildEnv(opts)
	if err != nil {
		return nil, err
	}
	return dispatch(context.Background(), env, content, url, 0, newGuard()), nil
}

func newBuildEnv(opts Options) (*buildEnv, error) {
	env := &buildEnv{opts: opts}

	if !opts.DisableFetchCache {
		cache, err := fetchcache.Open(opts.PageStoreDir)
		if err != nil {
			return nil, fmt.Errorf("sitemapgraph: opening fetch cache: %w", err)
		}
		env.fetchCache = cache
	}

	if !opts.DisablePageSpill {
		store, err := pagestore.Open(opts.PageStoreDir)
		if err != nil {
			return nil, fmt.Errorf("sitemapgraph: opening page store: %w", err)
		}
		env.pageStore = store
	}

	return env, nil
}

// normalizeHomepageForDiscovery implements spec §4.9 step 2 and also
// returns the "<base>/" prefix used to build robots.txt/known-path URLs.
func normalizeHomepageForDiscovery(homepage string, normalize bool) (normalizedURL, base string, err error) {
	if normalize {
		stripped, err := stripURLToHomepage(homepage)
		if err != nil {
			return "", "", err
		}
		return stripped, stripped, nil
	}

	trimmed := strings.TrimSuffix(homepage, "/") + "/"
	return trimmed, trimmed, nil
}
