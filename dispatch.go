package sitemapgraph

import (
	"context"
	"encoding/xml"
	"strings"
)

// peekNonWhitespace returns the first n non-whitespace runes of s, for the
// format dispatcher's sniffing step (spec §4.4).
func peekNonWhitespace(s string, n int) string {
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= n {
			break
		}
	}
	return b.String()
}

// dispatch implements C4: peek the first 20 non-whitespace characters and
// route to the right concrete parser. text is already decoded (post C2);
// sourceURL is the post-redirect URL it was fetched from.
func dispatch(ctx context.Context, env *buildEnv, text, sourceURL string, depth int, g *guard) *Node {
	peek := peekNonWhitespace(text, 20)
	if strings.HasPrefix(peek, "<") {
		return dispatchXML(ctx, env, text, sourceURL, depth, g)
	}
	if strings.HasSuffix(sourceURL, "/robots.txt") {
		return parseRobots(ctx, env, text, sourceURL, depth, g)
	}
	return parsePlainText(text, sourceURL, env.pageStore)
}

// dispatchXML peeks the root element's local name (after namespace
// normalization) and routes to the matching XML sub-parser (spec §4.4).
func dispatchXML(ctx context.Context, env *buildEnv, text, sourceURL string, depth int, g *guard) *Node {
	root, err := peekRootElement(text)
	if err != nil {
		return newInvalidNode(sourceURL, "unsupported root element")
	}

	switch root {
	case "sitemap:urlset":
		return parsePagesXML(text, sourceURL, env.opts.Logger, env.pageStore)
	case "sitemap:sitemapindex":
		return parseXMLIndex(ctx, env, text, sourceURL, depth, g)
	case "rss", "sitemap:rss":
		// RSS 2.0 roots carry no namespace, which normalizedNamespace maps
		// to the sitemap prefix.
		return parseRSS(text, sourceURL, env.pageStore)
	case "feed":
		return parseAtom(text, sourceURL, env.pageStore)
	default:
		return newInvalidNode(sourceURL, "unsupported root element")
	}
}

// peekRootElement decodes just far enough to see the first start element
// and returns its normalized (namespace-prefixed) name.
func peekRootElement(text string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return normalizeElementName(start.Name), nil
		}
	}
}

// normalizedNamespace maps a raw XML namespace URI to the logical prefix
// used throughout the XML parsers (spec §4.4): substring match against
// /sitemap/, /sitemap-news/, /sitemap-image/, plus "xhtml" for xhtml:link;
// everything else keeps its bare local name; no namespace at all is
// tolerated (debug log, treated as the sitemap namespace).
func normalizedNamespace(space string) (prefix string, knownNoNamespace bool) {
	switch {
	case strings.Contains(space, "/sitemap-news/"):
		return "news:", false
	case strings.Contains(space, "/sitemap-image/"):
		return "image:", false
	case strings.Contains(space, "/sitemap/"):
		return "sitemap:", false
	case strings.Contains(space, "xhtml"):
		return "xhtml:", false
	case space == "":
		return "sitemap:", true
	default:
		return "", false
	}
}

// normalizeElementName applies normalizedNamespace to an xml.Name, falling
// back to the bare local name for unrecognized namespaces.
func normalizeElementName(name xml.Name) string {
	prefix, _ := normalizedNamespace(name.Space)
	if prefix == "" {
		return name.Local
	}
	return prefix + name.Local
}
