package sitemapgraph

import (
	"io"
	"log/slog"
)

// RecurseCallback gates a single candidate sub-sitemap URL before it is
// fetched. Returning false skips the URL entirely -- not even an Invalid
// node is emitted for it (spec §4.10).
type RecurseCallback func(candidateURL string, depth int, ancestors []string) bool

// RecurseListCallback filters/reorders a whole batch of candidate
// sub-sitemap URLs discovered from one index node, before RecurseCallback
// runs on each of them individually (spec §4.10).
type RecurseListCallback func(candidateURLs []string, depth int, ancestors []string) []string

// Options configures sitemap tree discovery (C9/C10). The three *bool
// fields default to true when left nil -- an explicit pointer is how this
// package tells "not set" apart from "set to false" without a setter API.
type Options struct {
	// WebClient issues the GETs. Defaults to NewHTTPClient().
	WebClient WebClient

	// UseRobots fetches <homepage>/robots.txt and follows its Sitemap:
	// directives. nil (default) behaves as true.
	UseRobots *bool

	// UseKnownPaths probes the fixed well-known-path set (plus
	// ExtraKnownPaths). nil (default) behaves as true.
	UseKnownPaths *bool

	// NormalizeHomepageURL strips the input URL down to scheme://host/
	// before discovery. nil (default) behaves as true; when false,
	// robots.txt and known paths are resolved relative to the *provided*
	// path instead of the host root (spec §9).
	NormalizeHomepageURL *bool

	// ExtraKnownPaths are probed in addition to the fixed well-known set.
	ExtraKnownPaths []string

	// RecurseCallback and RecurseListCallback gate recursive sub-sitemap
	// fetches, per spec §4.10. Both optional.
	RecurseCallback     RecurseCallback
	RecurseListCallback RecurseListCallback

	// MaxResponseBytes caps how many body bytes a single fetch will
	// materialize (C1 set_max_response_data_length). 0 means the built-in
	// default (100 MiB, matching the Python original's generous cap).
	MaxResponseBytes int64

	// Logger receives debug/warn/error diagnostics. Defaults to a
	// discarding slog.Logger so the library is silent unless configured.
	Logger *slog.Logger

	// PageStoreDir, if set, is the directory backing the out-of-core page
	// spool (C3) for this tree build. Empty means os.TempDir().
	PageStoreDir string
	// DisablePageSpill keeps all pages in memory instead of spilling to
	// the on-disk store -- useful for small documents or tests, per the
	// §9 design note that spilling is a memory-bound strategy, not a
	// behavioral contract.
	DisablePageSpill bool

	// DisableFetchCache turns off the on-disk fetch-dedup cache (§4
	// domain stack) that keeps a sub-sitemap referenced from two parents
	// from being fetched twice within one tree build.
	DisableFetchCache bool
}

const defaultMaxResponseBytes = 100 * 1024 * 1024

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (o Options) useRobots() bool       { return boolOrDefault(o.UseRobots, true) }
func (o Options) useKnownPaths() bool   { return boolOrDefault(o.UseKnownPaths, true) }
func (o Options) normalizeHomepage() bool { return boolOrDefault(o.NormalizeHomepageURL, true) }

// withDefaults returns a copy of o with every unset field given its spec'd
// default, matching the teacher's New() defaulting pattern.
func (o Options) withDefaults() Options {
	if o.WebClient == nil {
		o.WebClient = NewHTTPClient()
	}
	if o.MaxResponseBytes == 0 {
		o.MaxResponseBytes = defaultMaxResponseBytes
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o.WebClient.SetMaxResponseDataLength(o.MaxResponseBytes)
	return o
}

func (o Options) applyRecurseFilters(candidates []string, depth int, ancestors []string) []string {
	if o.RecurseListCallback != nil {
		candidates = o.RecurseListCallback(candidates, depth, ancestors)
	}
	if o.RecurseCallback == nil {
		return candidates
	}
	filtered := make([]string, 0, len(candidates))
	for _, u := range candidates {
		if o.RecurseCallback(u, depth, ancestors) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// BoolPtr is a small convenience so callers can write
// Options{UseRobots: sitemapgraph.BoolPtr(false)} inline.
func BoolPtr(v bool) *bool {
	return &v
}
