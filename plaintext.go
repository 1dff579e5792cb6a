package sitemapgraph

import (
	"strings"

	"github.com/kotylevskiy/sitemapgraph/internal/pagestore"
)

// parsePlainText implements C6: one URL per line, trimmed, blank and
// non-HTTP lines skipped, each surviving line becoming a bare page record
// (spec §4.6).
func parsePlainText(content, sourceURL string, store *pagestore.Store) *Node {
	var pages []Page
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" || !isHTTPURL(line) {
			continue
		}
		pages = append(pages, Page{
			URL:      line,
			Priority: 0.5,
		})
	}
	n, err := newPagesNode(KindPagesText, sourceURL, pages, store)
	if err != nil {
		// newPagesNode only fails when spilling to a store; store is nil on
		// SitemapFromStr's no-network path but non-nil on a normal build.
		return newInvalidNode(sourceURL, err.Error())
	}
	return n
}
