package sitemapgraph

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kotylevskiy/sitemapgraph/internal/pagestore"
)

// attrValue looks up an unprefixed attribute by local name on a start
// element, e.g. rel/href/hreflang on xhtml:link.
func attrValue(start xml.StartElement, local string) string {
	for _, a := range start.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// parsePriorityValue implements spec §4.7's <priority> rule: decimal,
// falling back to 0.5 when unparseable or out of [0,1].
func parsePriorityValue(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0.5
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return 0.5
	}
	return v
}

// splitCommaList splits a comma-delimited field (genres/keywords/
// stock_tickers) and trims each element; an empty input yields nil, never
// a slice with one empty string (spec §3).
func splitCommaList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// logNoNamespaceOnce emits the §4.4 "detected without expected xmlns"
// debug log the first time an unnamespaced element is seen in a document,
// and stays silent after that to avoid spamming one log line per element.
func logNoNamespaceOnce(logger *slog.Logger, sourceURL string, logged *bool) {
	if *logged {
		return
	}
	*logged = true
	logger.Debug("detected without expected xmlns", "url", sourceURL)
}

// parsePagesXML implements the Pages-XML state machine of C7: news/image/
// alternate field mapping per spec §4.7's table, duplicate-URL collapse to
// first occurrence, and truncation tolerance (a parse error midway keeps
// whatever page records already finalized).
func parsePagesXML(text, sourceURL string, logger *slog.Logger, store *pagestore.Store) *Node {
	if logger == nil {
		logger = discardLogger()
	}
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false

	var (
		pages      []Page
		seen       = make(map[string]bool)
		charData   strings.Builder
		page       *Page
		news       *NewsStory
		image      *Image
		loggedNoNS bool
	)

	finalizePage := func() {
		if page == nil || page.URL == "" {
			page = nil
			return
		}
		if !seen[page.URL] {
			seen[page.URL] = true
			pages = append(pages, *page)
		}
		page = nil
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			if err != io.EOF {
				logger.Debug("truncated pages-xml document, keeping parsed entries", "url", sourceURL, "error", err.Error())
			}
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			charData.Reset()
			if _, noNS := normalizedNamespace(t.Name.Space); noNS {
				logNoNamespaceOnce(logger, sourceURL, &loggedNoNS)
			}
			name := normalizeElementName(t.Name)
			switch name {
			case "sitemap:url":
				page = &Page{Priority: 0.5}
			case "news:news":
				if page != nil {
					news = &NewsStory{}
				}
			case "image:image":
				if page != nil {
					image = &Image{}
				}
			case "xhtml:link":
				if page != nil && attrValue(t, "rel") == "alternate" {
					href := attrValue(t, "href")
					hreflang := attrValue(t, "hreflang")
					if href != "" && hreflang != "" {
						page.Alternates = append(page.Alternates, Alternate{HrefLang: hreflang, Href: href})
					}
				}
			}
		case xml.CharData:
			charData.Write(t)
		case xml.EndElement:
			name := normalizeElementName(t.Name)
			value := charData.String()
			charData.Reset()

			switch {
			case name == "sitemap:url":
				finalizePage()
			case name == "image:image":
				if page != nil && image != nil && image.Loc != "" {
					page.Images = append(page.Images, *image)
				}
				image = nil
			case name == "news:news":
				if page != nil && news != nil && news.Title != "" && !news.PublishDate.IsZero() {
					page.NewsStory = news
				}
				news = nil
			case image != nil:
				applyImageField(image, name, value)
			case news != nil:
				applyNewsField(news, name, value)
			case page != nil:
				applyPageField(page, name, value)
			}
		}
	}
	finalizePage()

	n, err := newPagesNode(KindPagesXML, sourceURL, pages, store)
	if err != nil {
		return newInvalidNode(sourceURL, err.Error())
	}
	return n
}

func applyPageField(page *Page, name, value string) {
	switch name {
	case "sitemap:loc":
		page.URL = htmlUnescapeStrip(value)
	case "sitemap:lastmod":
		page.LastModified = parseISO8601Date(value)
	case "sitemap:changefreq":
		if v := strings.TrimSpace(value); v != "" {
			page.ChangeFrequency = NormalizeChangeFrequency(v)
		}
	case "sitemap:priority":
		page.Priority = parsePriorityValue(value)
	}
}

func applyNewsField(news *NewsStory, name, value string) {
	switch name {
	case "news:title":
		news.Title = htmlUnescapeStrip(value)
	case "news:publication_date":
		if t := parseISO8601Date(value); t != nil {
			news.PublishDate = *t
		}
	case "news:name":
		news.PublicationName = htmlUnescapeStrip(value)
	case "news:language":
		news.PublicationLanguage = htmlUnescapeStrip(value)
	case "news:access":
		news.Access = htmlUnescapeStrip(value)
	case "news:genres":
		news.Genres = splitCommaList(value)
	case "news:keywords":
		news.Keywords = splitCommaList(value)
	case "news:stock_tickers":
		news.StockTickers = splitCommaList(value)
	}
}

func applyImageField(image *Image, name, value string) {
	switch name {
	case "image:loc":
		image.Loc = htmlUnescapeStrip(value)
	case "image:caption":
		image.Caption = htmlUnescapeStrip(value)
	case "image:geo_location":
		image.GeoLocation = htmlUnescapeStrip(value)
	case "image:title":
		image.Title = htmlUnescapeStrip(value)
	case "image:license":
		image.License = htmlUnescapeStrip(value)
	}
}

// parseXMLIndex implements the XML-index parser of C7: collect every
// <sitemap:sitemap><sitemap:loc> URL, then recursively fetch+dispatch each
// one under the cycle guard.
func parseXMLIndex(ctx context.Context, env *buildEnv, text, sourceURL string, depth int, g *guard) *Node {
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false

	var charData strings.Builder
	var urls []string
	inSitemap := false
	var loggedNoNS bool

	for {
		tok, err := decoder.Token()
		if err != nil {
			if err != io.EOF {
				env.logger().Debug("truncated xml-index document, keeping parsed entries", "url", sourceURL, "error", err.Error())
			}
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			charData.Reset()
			if _, noNS := normalizedNamespace(t.Name.Space); noNS {
				logNoNamespaceOnce(env.logger(), sourceURL, &loggedNoNS)
			}
			if normalizeElementName(t.Name) == "sitemap:sitemap" {
				inSitemap = true
			}
		case xml.CharData:
			charData.Write(t)
		case xml.EndElement:
			name := normalizeElementName(t.Name)
			value := charData.String()
			charData.Reset()
			if name == "sitemap:loc" && inSitemap {
				if u := htmlUnescapeStrip(value); u != "" {
					urls = append(urls, u)
				}
			} else if name == "sitemap:sitemap" {
				inSitemap = false
			}
		}
	}

	candidates := env.opts.applyRecurseFilters(urls, depth, g.ancestorList())

	var children []*Node
	for _, u := range candidates {
		if !isHTTPURL(u) {
			env.logger().Debug("skipping non-HTTP sitemap index entry", "url", u, "parent", sourceURL)
			continue
		}
		children = append(children, fetchAndDispatch(ctx, env, u, depth+1, g))
	}
	return newIndexNode(KindXMLIndex, sourceURL, children)
}

// parseRSS implements the RSS 2.0 sub-parser of C7. RSS has no sitemaps.org
// namespace scheme to normalize, so elements are matched on their bare
// local name.
func parseRSS(text, sourceURL string, store *pagestore.Store) *Node {
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false

	var charData strings.Builder
	var pages []Page
	inItem := false
	var link, title, description, pubDate string

	flush := func() {
		if link == "" {
			return
		}
		newsTitle := title
		if newsTitle == "" {
			newsTitle = description
		}
		page := Page{URL: link, Priority: 0.5}
		if newsTitle != "" {
			if pd := parseRFC2822Date(pubDate); pd != nil {
				page.NewsStory = &NewsStory{Title: newsTitle, PublishDate: *pd}
			}
		}
		pages = append(pages, page)
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			charData.Reset()
			if t.Name.Local == "item" {
				inItem = true
				link, title, description, pubDate = "", "", "", ""
			}
		case xml.CharData:
			charData.Write(t)
		case xml.EndElement:
			value := strings.TrimSpace(charData.String())
			charData.Reset()
			if !inItem {
				continue
			}
			switch t.Name.Local {
			case "link":
				link = htmlUnescapeStrip(value)
			case "title":
				title = htmlUnescapeStrip(value)
			case "description":
				description = htmlUnescapeStrip(value)
			case "pubDate":
				pubDate = value
			case "item":
				flush()
				inItem = false
			}
		}
	}

	n, err := newPagesNode(KindPagesRSS, sourceURL, pages, store)
	if err != nil {
		return newInvalidNode(sourceURL, err.Error())
	}
	return n
}

// parseAtom implements the Atom 0.3/1.0 sub-parser of C7, also matched on
// bare local names.
func parseAtom(text, sourceURL string, store *pagestore.Store) *Node {
	decoder := xml.NewDecoder(strings.NewReader(text))
	decoder.Strict = false

	var charData strings.Builder
	var pages []Page
	inEntry := false
	var selfHref, firstHref, title, summary, tagline, issued, published, updated string

	flush := func() {
		link := selfHref
		if link == "" {
			link = firstHref
		}
		if link == "" {
			return
		}
		newsTitle := title
		if newsTitle == "" {
			newsTitle = summary
		}
		if newsTitle == "" {
			newsTitle = tagline
		}
		page := Page{URL: link, Priority: 0.5}
		if newsTitle != "" {
			raw := issued
			if raw == "" {
				raw = published
			}
			if raw == "" {
				raw = updated
			}
			if pd := parseISO8601Date(raw); pd != nil {
				page.NewsStory = &NewsStory{Title: newsTitle, PublishDate: *pd}
			}
		}
		pages = append(pages, page)
	}

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			charData.Reset()
			switch t.Name.Local {
			case "entry":
				inEntry = true
				selfHref, firstHref, title, summary, tagline, issued, published, updated = "", "", "", "", "", "", "", ""
			case "link":
				if inEntry {
					href := attrValue(t, "href")
					rel := attrValue(t, "rel")
					if rel == "self" && selfHref == "" {
						selfHref = href
					}
					if firstHref == "" {
						firstHref = href
					}
				}
			}
		case xml.CharData:
			charData.Write(t)
		case xml.EndElement:
			value := strings.TrimSpace(charData.String())
			charData.Reset()
			if !inEntry {
				continue
			}
			switch t.Name.Local {
			case "title":
				title = htmlUnescapeStrip(value)
			case "summary":
				summary = htmlUnescapeStrip(value)
			case "tagline":
				tagline = htmlUnescapeStrip(value)
			case "issued":
				issued = value
			case "published":
				published = value
			case "updated":
				updated = value
			case "entry":
				flush()
				inEntry = false
			}
		}
	}

	n, err := newPagesNode(KindPagesAtom, sourceURL, pages, store)
	if err != nil {
		return newInvalidNode(sourceURL, err.Error())
	}
	return n
}
