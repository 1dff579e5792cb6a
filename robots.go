package sitemapgraph

import (
	"context"
	"regexp"
	"strings"
)

// sitemapDirectiveRegexp matches a robots.txt "Sitemap:"/"Site-map:" line,
// case-insensitively, per spec §4.5.
var sitemapDirectiveRegexp = regexp.MustCompile(`(?i)^\s*site-?map:\s*(.+?)\s*$`)

// extractSitemapDirectives scans robots.txt content line by line and
// returns the directive URLs in first-seen order, deduplicated (spec
// §4.5). Grounded on original_source/usp/fetch_parse.py's
// IndexRobotsTxtSitemapParser, reimplemented directly rather than through
// github.com/temoto/robotstxt (see DESIGN.md for why).
func extractSitemapDirectives(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		m := sitemapDirectiveRegexp.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		u := htmlUnescapeStrip(m[1])
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// parseRobots implements C5: extract Sitemap: directives, validate each as
// HTTP, and recursively fetch+dispatch it under the cycle guard, wrapping
// the results in a Robots-index node.
func parseRobots(ctx context.Context, env *buildEnv, content, sourceURL string, depth int, g *guard) *Node {
	directives := extractSitemapDirectives(content)
	candidates := env.opts.applyRecurseFilters(directives, depth+1, g.ancestorList())

	var children []*Node
	for _, raw := range candidates {
		if !isHTTPURL(raw) {
			env.logger().Debug("skipping non-HTTP sitemap directive", "url", raw, "robots", sourceURL)
			continue
		}
		child := fetchAndDispatch(ctx, env, raw, depth+1, g)
		children = append(children, child)
	}

	return newIndexNode(KindRobotsIndex, sourceURL, children)
}
