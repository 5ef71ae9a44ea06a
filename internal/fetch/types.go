// Package fetch implements the concurrent page-retrieval pipeline: a single
// browser session shared by a bounded pool of page fetch operations, each with
// a two-tier retry policy against classified failures.
package fetch

import (
	"context"
	"net/url"
	"time"
)

// WaitMode selects the navigation readiness condition for a page load.
type WaitMode int

// Wait tiers. DOM-ready is the cheap first-attempt condition; full-load is
// the stronger condition used on retries. Waiting for network idle is
// deliberately not offered: long-polling pages never become idle.
const (
	WaitDOMReady WaitMode = iota
	WaitFullLoad
)

func (m WaitMode) String() string {
	if m == WaitFullLoad {
		return "full_load"
	}
	return "dom_ready"
}

// FailureKind classifies why a URL could not be fetched.
type FailureKind string

// Failure kinds surfaced in outcomes.
const (
	KindNone               FailureKind = ""
	KindSessionInvalidated FailureKind = "session_invalidated"
	KindNavigationTimeout  FailureKind = "navigation_timeout"
	KindContentUnavailable FailureKind = "content_unavailable"
	KindOperationTimeout   FailureKind = "operation_timeout"
	KindCanceled           FailureKind = "canceled"
)

// Session hands out fresh page handles bound to one shared browsing context.
// Implementations must serialize their own internal state; see browser.Session.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Page is a short-lived handle for one tab. Every page created must receive
// exactly one Close before its fetch operation finalizes its result.
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitMode) error
	Settle(ctx context.Context, d time.Duration) error
	Content(ctx context.Context) (string, error)
	Close() error
}

// SessionFactory builds the one Session used for an entire FetchAll call.
type SessionFactory func(ctx context.Context) (Session, error)

// Outcome is the terminal result of one URL's retrieval.
type Outcome struct {
	URL     *url.URL
	HTML    string
	Kind    FailureKind
	Message string
	Elapsed time.Duration
}

// OK reports whether the fetch produced usable HTML.
func (o Outcome) OK() bool {
	return o.Kind == KindNone
}

// Counters aggregates run statistics. Diagnostic only; never drives control
// flow.
type Counters struct {
	Attempted int
	Succeeded int
	Failed    int
	TimedOut  int
}
