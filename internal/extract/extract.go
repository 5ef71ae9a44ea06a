// Package extract reduces rendered HTML to an ordered, deduplicated sequence
// of human-readable text blocks.
package extract

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// WebDoc is one extracted text block tagged with its source page.
type WebDoc struct {
	URL  string
	Text string
}

// blockMatcher selects every candidate block tag in one pass, preserving
// document order. Compiled once at package init and reused across pages.
var blockMatcher = cascadia.MustCompile("p,li,blockquote,pre,code,h1,h2,h3,h4,h5,h6")

var blockTags = map[string]struct{}{
	"p": {}, "li": {}, "blockquote": {}, "pre": {}, "code": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

var chromeContainerTags = map[string]struct{}{
	"nav": {}, "header": {}, "footer": {}, "aside": {},
}

// DefaultBoilerplateKeywords flag chrome containers by id/class substring.
// The list is deliberately short: a false positive silently drops real
// content, a false negative only lets chrome text through to the dedup pass.
var DefaultBoilerplateKeywords = []string{
	"nav", "navbar", "menu", "footer", "header", "sidebar",
	"breadcrumb", "breadcrumbs", "cookie", "consent", "subscribe", "newsletter",
}

// Extractor walks parsed documents with a configurable boilerplate keyword
// set. Safe for concurrent use.
type Extractor struct {
	keywords []string
}

// New builds an Extractor. With no keywords the defaults are used.
func New(keywords []string) *Extractor {
	if len(keywords) == 0 {
		keywords = DefaultBoilerplateKeywords
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &Extractor{keywords: lowered}
}

// Extract parses rawHTML and returns one WebDoc per surviving block, in
// document order. A parse failure excludes the whole page; there is no
// partial extraction from malformed documents.
func (e *Extractor) Extract(pageURL string, rawHTML string) ([]WebDoc, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]struct{})
	var out []WebDoc
	for _, node := range doc.FindMatcher(blockMatcher).Nodes {
		if e.isBoilerplate(node) || isNestedBlock(node) {
			continue
		}
		text := normalizeText(nodeText(node))
		if text == "" {
			continue
		}
		// Identical blocks show up from repeated chrome text and genuinely
		// repeated content; first occurrence wins.
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, WebDoc{URL: pageURL, Text: text})
	}
	return out, nil
}

// isBoilerplate reports whether the node or any ancestor marks page chrome:
// a landmark container tag, an explicit navigation role, aria-hidden, or a
// chrome-flavored id/class.
func (e *Extractor) isBoilerplate(n *html.Node) bool {
	for anc := n; anc != nil; anc = anc.Parent {
		if anc.Type != html.ElementNode {
			continue
		}
		if _, ok := chromeContainerTags[anc.Data]; ok {
			return true
		}
		for _, attr := range anc.Attr {
			switch attr.Key {
			case "role":
				if strings.EqualFold(attr.Val, "navigation") {
					return true
				}
			case "aria-hidden":
				if strings.EqualFold(attr.Val, "true") {
					return true
				}
			case "id", "class":
				if e.looksLikeChrome(attr.Val) {
					return true
				}
			}
		}
	}
	return false
}

func (e *Extractor) looksLikeChrome(attrVal string) bool {
	lowered := strings.ToLower(attrVal)
	for _, k := range e.keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// isNestedBlock reports whether a strict ancestor is itself a candidate
// block tag, e.g. code inside pre. The outer block already carries the text.
func isNestedBlock(n *html.Node) bool {
	for anc := n.Parent; anc != nil; anc = anc.Parent {
		if anc.Type != html.ElementNode {
			continue
		}
		if _, ok := blockTags[anc.Data]; ok {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// normalizeText collapses whitespace runs (including newlines) to single
// spaces and trims the ends.
func normalizeText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				sb.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		sb.WriteRune(r)
		lastWasSpace = false
	}
	return strings.TrimSpace(sb.String())
}

