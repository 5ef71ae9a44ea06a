// Package urlset extracts candidate URLs from free-form text and holds them
// as a deduplicated, insertion-ordered set.
package urlset

import (
	"net/url"
	"regexp"
	"strings"
)

// urlPattern matches http(s) locators embedded in arbitrary text. Compiled
// once; the match is intentionally permissive and cleaned up afterwards.
var urlPattern = regexp.MustCompile(`https?://[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`)

// trimCutset holds the punctuation commonly glued onto URLs in prose, e.g.
// "(see https://example.com)." or markdown link tails.
const trimCutset = ")]}.,;:\"'> "

// Set is a deduplicated collection of parsed URLs. Equality is exact string
// equality of the parsed form; first-seen order is preserved.
type Set struct {
	order []*url.URL
	seen  map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add parses and inserts a raw URL. It reports whether the URL was new.
// Unparseable input is silently dropped, matching the permissive contract of
// text scraping: garbage in the haystack is not an error.
func (s *Set) Add(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	key := u.String()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.order = append(s.order, u)
	return true
}

// URLs returns the set contents in first-seen order.
func (s *Set) URLs() []*url.URL {
	out := make([]*url.URL, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of distinct URLs held.
func (s *Set) Len() int {
	return len(s.order)
}

// Extract scans text for URLs and returns them as a Set. Trailing punctuation
// is stripped before parsing.
func Extract(text string) *Set {
	set := New()
	for _, match := range urlPattern.FindAllString(text, -1) {
		set.Add(strings.TrimRight(match, trimCutset))
	}
	return set
}
