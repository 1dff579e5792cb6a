package sitemapgraph

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"iter"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kotylevskiy/sitemapgraph/internal/pagestore"
)

// Kind distinguishes the variant a Node carries (spec §3: "a tagged variant
// with a common attribute url and one of ...").
type Kind int

const (
	KindWebsiteIndex Kind = iota
	KindRobotsIndex
	KindXMLIndex
	KindPagesXML
	KindPagesText
	KindPagesRSS
	KindPagesAtom
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindWebsiteIndex:
		return "website-index"
	case KindRobotsIndex:
		return "robots-index"
	case KindXMLIndex:
		return "xml-index"
	case KindPagesXML:
		return "pages-xml"
	case KindPagesText:
		return "pages-text"
	case KindPagesRSS:
		return "pages-rss"
	case KindPagesAtom:
		return "pages-atom"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

func (k Kind) isIndex() bool {
	switch k {
	case KindWebsiteIndex, KindRobotsIndex, KindXMLIndex:
		return true
	default:
		return false
	}
}

func (k Kind) isPages() bool {
	switch k {
	case KindPagesXML, KindPagesText, KindPagesRSS, KindPagesAtom:
		return true
	default:
		return false
	}
}

// ChangeFrequency is the enumerated <changefreq> value (spec §3). The zero
// value is not a valid frequency; use ChangeFrequencyAlways as the fallback.
type ChangeFrequency string

const (
	ChangeFrequencyAlways  ChangeFrequency = "always"
	ChangeFrequencyHourly  ChangeFrequency = "hourly"
	ChangeFrequencyDaily   ChangeFrequency = "daily"
	ChangeFrequencyWeekly  ChangeFrequency = "weekly"
	ChangeFrequencyMonthly ChangeFrequency = "monthly"
	ChangeFrequencyYearly  ChangeFrequency = "yearly"
	ChangeFrequencyNever   ChangeFrequency = "never"
)

var validChangeFrequencies = map[ChangeFrequency]bool{
	ChangeFrequencyAlways: true, ChangeFrequencyHourly: true, ChangeFrequencyDaily: true,
	ChangeFrequencyWeekly: true, ChangeFrequencyMonthly: true, ChangeFrequencyYearly: true,
	ChangeFrequencyNever: true,
}

// NormalizeChangeFrequency lowercases and validates a raw <changefreq>
// value, falling back to "always" per spec §4.7.
func NormalizeChangeFrequency(raw string) ChangeFrequency {
	cf := ChangeFrequency(toLowerASCII(raw))
	if !validChangeFrequencies[cf] {
		return ChangeFrequencyAlways
	}
	return cf
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Alternate is an (hreflang, href) pair lifted from an xhtml:link
// rel="alternate" element (spec §4.7).
type Alternate struct {
	HrefLang string
	Href     string
}

// Image is a Google Image-extension entry attached to a page (spec §3).
type Image struct {
	Loc         string
	Caption     string
	GeoLocation string
	Title       string
	License     string
}

// NewsStory is a Google-News-extension record attached to a page (spec §3).
// Title and PublishDate are both required for the caller to have
// materialized this record at all -- see parsePagesXML, parseRSS and
// parseAtom.
type NewsStory struct {
	Title               string
	PublishDate         time.Time
	PublicationName     string
	PublicationLanguage string
	Access              string
	Genres              []string
	Keywords            []string
	StockTickers        []string
}

// Page is one <url>/<item>/<entry> record (spec §3).
type Page struct {
	URL             string
	Priority        float64
	LastModified    *time.Time
	ChangeFrequency ChangeFrequency
	NewsStory       *NewsStory
	Images          []Image
	Alternates      []Alternate
}

// Node is a sitemap-graph node: a tagged union over {children, pages,
// reason}, per spec §3's invariant (a). Exactly one of those three is
// populated for any given Kind; the others are treated as empty by every
// accessor.
type Node struct {
	Kind Kind
	URL  string

	children []*Node
	reason   string

	store    *pagestore.Store
	pageKey  string
	pages    []Page // used directly when store is nil (DisablePageSpill)
	pageLoad bool    // true when pages[] holds the list itself; spilled nodes rehydrate from store on every Pages() call
}

// newIndexNode builds a Website-index/Robots-index/XML-index node.
func newIndexNode(kind Kind, url string, children []*Node) *Node {
	return &Node{Kind: kind, URL: url, children: children}
}

// newInvalidNode builds an Invalid node carrying reason.
func newInvalidNode(url, reason string) *Node {
	return &Node{Kind: KindInvalid, URL: url, reason: reason}
}

// newPagesNode builds a pages-bearing node, spilling pages to store unless
// store is nil (spec §3 "Lifecycle": pages-bearing nodes spill to a
// temporary backing file at construction time).
func newPagesNode(kind Kind, url string, pages []Page, store *pagestore.Store) (*Node, error) {
	n := &Node{Kind: kind, URL: url}
	if store == nil {
		n.pages = pages
		n.pageLoad = true
		return n, nil
	}
	payload, err := encodePages(pages)
	if err != nil {
		return nil, fmt.Errorf("sitemapgraph: encoding pages for %s: %w", url, err)
	}
	key := fmt.Sprintf("%p-%s", n, url)
	if err := store.Put(key, payload); err != nil {
		return nil, fmt.Errorf("sitemapgraph: spilling pages for %s: %w", url, err)
	}
	n.store = store
	n.pageKey = key
	return n, nil
}

func encodePages(pages []Page) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pages); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePages(payload []byte) ([]Page, error) {
	var pages []Page
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// Reason returns the diagnostic string carried by an Invalid node, or "" for
// any other Kind.
func (n *Node) Reason() string {
	if n == nil || n.Kind != KindInvalid {
		return ""
	}
	return n.reason
}

// Children returns this node's ordered child sitemaps; empty for pages-
// bearing and Invalid nodes (spec §3 invariant (a)).
func (n *Node) Children() []*Node {
	if n == nil || !n.Kind.isIndex() {
		return nil
	}
	return n.children
}

// Pages returns this node's own page list (not descendants'); empty for
// index and Invalid nodes. Rehydrates from the backing store on demand.
func (n *Node) Pages() ([]Page, error) {
	if n == nil || !n.Kind.isPages() {
		return nil, nil
	}
	if n.pageLoad {
		return n.pages, nil
	}
	payload, err := n.store.Get(n.pageKey)
	if err != nil {
		return nil, fmt.Errorf("sitemapgraph: rehydrating pages for %s: %w", n.URL, err)
	}
	pages, err := decodePages(payload)
	if err != nil {
		return nil, fmt.Errorf("sitemapgraph: decoding pages for %s: %w", n.URL, err)
	}
	return pages, nil
}

// AllPages lazily yields every page reachable from n: depth-first,
// pre-order, own pages before children, children left-to-right (spec §4.3).
// Index nodes never materialize an intermediate list -- the sequence walks
// straight through to leaf pages-bearing nodes.
func (n *Node) AllPages() iter.Seq[Page] {
	return func(yield func(Page) bool) {
		if n == nil {
			return
		}
		n.walkPages(yield)
	}
}

func (n *Node) walkPages(yield func(Page) bool) bool {
	if n.Kind.isPages() {
		pages, err := n.Pages()
		if err != nil {
			return true // skip a node whose spool failed to rehydrate; not fatal to the walk
		}
		for _, p := range pages {
			if !yield(p) {
				return false
			}
		}
		return true
	}
	for _, child := range n.children {
		if !child.walkPages(yield) {
			return false
		}
	}
	return true
}

// AllSitemaps lazily yields every descendant sitemap node (excluding n
// itself), same traversal order as AllPages (spec §4.3).
func (n *Node) AllSitemaps() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if n == nil {
			return
		}
		n.walkSitemaps(yield)
	}
}

func (n *Node) walkSitemaps(yield func(*Node) bool) bool {
	for _, child := range n.children {
		if !yield(child) {
			return false
		}
		if !child.walkSitemaps(yield) {
			return false
		}
	}
	return true
}

// Close releases the shared page store backing this tree, if any. Callers
// should invoke Close on the root Node returned by SitemapTreeForHomepage
// once they are done traversing it.
func (n *Node) Close() error {
	if n == nil || n.store == nil {
		return nil
	}
	return n.store.Close()
}

// nodeDict is the deterministic, sonic-serializable shape to_dict produces
// (spec §4.3, §9).
type nodeDict struct {
	Kind     string     `json:"kind"`
	URL      string     `json:"url"`
	Reason   string     `json:"reason,omitempty"`
	Children []nodeDict `json:"children,omitempty"`
	Pages    []pageDict `json:"pages,omitempty"`
}

type pageDict struct {
	URL             string          `json:"url"`
	Priority        float64         `json:"priority"`
	LastModified    *time.Time      `json:"last_modified,omitempty"`
	ChangeFrequency ChangeFrequency `json:"change_frequency,omitempty"`
	NewsStory       *newsStoryDict  `json:"news_story,omitempty"`
	Images          []imageDict     `json:"images,omitempty"`
	Alternates      []Alternate     `json:"alternates,omitempty"`
}

type newsStoryDict struct {
	Title               string    `json:"title"`
	PublishDate         time.Time `json:"publish_date"`
	PublicationName     string    `json:"publication_name,omitempty"`
	PublicationLanguage string    `json:"publication_language,omitempty"`
	Access              string    `json:"access,omitempty"`
	Genres              []string  `json:"genres,omitempty"`
	Keywords            []string  `json:"keywords,omitempty"`
	StockTickers        []string  `json:"stock_tickers,omitempty"`
}

type imageDict struct {
	Loc         string `json:"loc"`
	Caption     string `json:"caption,omitempty"`
	GeoLocation string `json:"geo_location,omitempty"`
	Title       string `json:"title,omitempty"`
	License     string `json:"license,omitempty"`
}

func (n *Node) toDict(withPages bool) (nodeDict, error) {
	d := nodeDict{Kind: n.Kind.String(), URL: n.URL, Reason: n.reason}
	for _, child := range n.children {
		cd, err := child.toDict(withPages)
		if err != nil {
			return nodeDict{}, err
		}
		d.Children = append(d.Children, cd)
	}
	if withPages && n.Kind.isPages() {
		pages, err := n.Pages()
		if err != nil {
			return nodeDict{}, err
		}
		for _, p := range pages {
			d.Pages = append(d.Pages, pageToDict(p))
		}
	}
	return d, nil
}

func pageToDict(p Page) pageDict {
	pd := pageDict{
		URL:             p.URL,
		Priority:        p.Priority,
		LastModified:    p.LastModified,
		ChangeFrequency: p.ChangeFrequency,
		Images:          make([]imageDict, 0, len(p.Images)),
		Alternates:      p.Alternates,
	}
	for _, img := range p.Images {
		pd.Images = append(pd.Images, imageDict{
			Loc: img.Loc, Caption: img.Caption, GeoLocation: img.GeoLocation,
			Title: img.Title, License: img.License,
		})
	}
	if p.NewsStory != nil {
		pd.NewsStory = &newsStoryDict{
			Title: p.NewsStory.Title, PublishDate: p.NewsStory.PublishDate,
			PublicationName: p.NewsStory.PublicationName, PublicationLanguage: p.NewsStory.PublicationLanguage,
			Access: p.NewsStory.Access, Genres: p.NewsStory.Genres,
			Keywords: p.NewsStory.Keywords, StockTickers: p.NewsStory.StockTickers,
		}
	}
	return pd
}

// ToDict produces a deterministic serializable form of the tree rooted at
// n, marshaled through sonic (spec §4.3's to_dict, §9's "serialization
// preserves page content in-band"). When withPages is false, pages-bearing
// nodes are emitted without their page lists -- useful for a lightweight
// tree-shape dump.
func (n *Node) ToDict(withPages bool) (map[string]any, error) {
	if n == nil {
		return nil, nil
	}
	d, err := n.toDict(withPages)
	if err != nil {
		return nil, err
	}
	raw, err := sonic.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("sitemapgraph: marshaling node dict: %w", err)
	}
	var out map[string]any
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("sitemapgraph: unmarshaling node dict: %w", err)
	}
	return out, nil
}
