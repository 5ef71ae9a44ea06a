package fetch

import (
	"context"
	"errors"
	"strings"
)

// Classifier maps a failed page operation to a FailureKind. Classification is
// a best-effort heuristic over diagnostic text; keeping it behind an interface
// keeps the retry state machine independent of the matching rules.
type Classifier interface {
	Classify(err error) FailureKind
}

// DefaultInvalidationPatterns are the known tab-vanished diagnostics emitted
// by the browser driver when a target crashes, redirects to a download, or is
// closed by a race.
var DefaultInvalidationPatterns = []string{
	"object not found",
	"target closed",
	"session closed",
	"browser has been closed",
	"websocket: close",
}

// PatternClassifier matches failure text against a fixed substring set.
type PatternClassifier struct {
	patterns []string
}

// NewPatternClassifier builds a classifier from lowercase substring patterns.
// With no patterns the defaults are used.
func NewPatternClassifier(patterns []string) *PatternClassifier {
	if len(patterns) == 0 {
		patterns = DefaultInvalidationPatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &PatternClassifier{patterns: lowered}
}

// Classify returns the failure kind for err. Deadline expiry maps to
// navigation timeout; matching invalidation text maps to session
// invalidation; everything else is a generic content failure.
func (c *PatternClassifier) Classify(err error) FailureKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNavigationTimeout
	}
	text := strings.ToLower(err.Error())
	for _, p := range c.patterns {
		if strings.Contains(text, p) {
			return KindSessionInvalidated
		}
	}
	return KindContentUnavailable
}
