package sitemapgraph

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var httpURLRegexp = regexp.MustCompile(`(?i)^https?://[^\s/$.?#].[^\s]*$`)

// isHTTPURL reports whether raw looks like an absolute http(s) URL, per
// spec §4.9/§6 ("Validate url is HTTP(s)"). Mirrors
// original_source/usp/helpers.py:is_http_url.
func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	if !httpURLRegexp.MatchString(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

// htmlUnescapeStrip decodes HTML/XML entities and trims surrounding
// whitespace; returns "" for a string that collapses to nothing.
func htmlUnescapeStrip(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s))
}

// stripURLToHomepage reduces a URL to scheme://host[:port]/, discarding
// path, query and fragment, per spec §4.9 step 2.
func stripURLToHomepage(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ErrInvalidURL{URL: raw, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ErrInvalidURL{URL: raw, Err: err}
	}
	stripped := url.URL{
		Scheme: u.Scheme,
		User:   u.User,
		Host:   u.Host,
		Path:   "/",
	}
	return stripped.String(), nil
}

var iso8601Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// parseISO8601Date best-effort parses <lastmod>/<publication_date> values.
// Returns nil (never an error) on failure -- field-level validation repairs
// silently per spec §4.7.
func parseISO8601Date(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range iso8601Layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

var rfc2822Layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
}

// parseRFC2822Date best-effort parses RSS <pubDate> / Atom fallback dates.
func parseRFC2822Date(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range rfc2822Layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	// Some feeds use ISO-8601 in <pubDate> despite the RFC-2822 spec.
	return parseISO8601Date(raw)
}
