// Package search defines the finding type shared by the ranking backends and
// provides a plain substring scan for runs without an embeddings API key.
package search

import (
	"fmt"
	"strings"

	"github.com/websift/websift/internal/extract"
)

// Finding is one search result presented to the end user.
type Finding struct {
	// Query used to produce this finding.
	Query string
	// Relevance in [0, 1].
	Relevance float64
	// Doc is the matched text block.
	Doc extract.WebDoc
}

func (f Finding) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", f.Doc.URL)
	fmt.Fprintf(&sb, "Text: %s\n", f.Doc.Text)
	fmt.Fprintf(&sb, "Relevance: %.0f%%\n", f.Relevance*100)
	return sb.String()
}

// Substring returns a finding for every doc containing query,
// case-insensitively. Exact containment scores 1.0; there is no partial
// credit in this backend.
func Substring(query string, docs []extract.WebDoc) []Finding {
	needle := strings.ToLower(query)
	if needle == "" {
		return nil
	}
	var findings []Finding
	for _, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Text), needle) {
			findings = append(findings, Finding{Query: query, Relevance: 1.0, Doc: doc})
		}
	}
	return findings
}
