package fetch

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Failure carries the classified reason one URL could not be fetched.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Operation retrieves the rendered HTML for single URLs, tolerating transient
// engine-level failures. Navigation gets one retry with the stronger wait
// condition; a vanished target additionally gets a fresh page handle.
type Operation struct {
	session    Session
	classifier Classifier
	settle     time.Duration
	logger     *zap.Logger
}

// NewOperation builds an Operation bound to session.
func NewOperation(session Session, classifier Classifier, settle time.Duration, logger *zap.Logger) *Operation {
	if classifier == nil {
		classifier = NewPatternClassifier(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operation{
		session:    session,
		classifier: classifier,
		settle:     settle,
		logger:     logger,
	}
}

// Fetch navigates to target and returns its rendered HTML. The page handle is
// closed exactly once on every path before the result is finalized.
func (op *Operation) Fetch(ctx context.Context, target *url.URL) (string, *Failure) {
	started := time.Now()
	brief := urlBrief(target)
	op.logger.Debug("fetch start", zap.String("url", brief))

	page, err := op.session.NewPage(ctx)
	if err != nil {
		return "", &Failure{Kind: KindSessionInvalidated, Message: fmt.Sprintf("new page: %v", err)}
	}
	defer func() {
		if page != nil {
			op.closePage(page, brief)
		}
	}()

	rawURL := target.String()
	if navErr := page.Navigate(ctx, rawURL, WaitDOMReady); navErr != nil {
		kind := op.classifier.Classify(navErr)
		op.logger.Warn("navigation failed; retrying with full load",
			zap.String("url", brief),
			zap.String("kind", string(kind)),
			zap.Error(navErr),
		)

		if kind == KindSessionInvalidated {
			// The tab vanished; this handle cannot serve the retry.
			op.closePage(page, brief)
			if page, err = op.session.NewPage(ctx); err != nil {
				page = nil
				return "", &Failure{Kind: KindSessionInvalidated, Message: fmt.Sprintf("replacement page: %v", err)}
			}
		}
		if retryErr := page.Navigate(ctx, rawURL, WaitFullLoad); retryErr != nil {
			return "", op.failure(retryErr, "navigate")
		}
	}

	// Give client-rendered pages a moment to paint. Non-fatal.
	if settleErr := page.Settle(ctx, op.settle); settleErr != nil {
		op.logger.Debug("settle wait failed; continuing",
			zap.String("url", brief), zap.Error(settleErr))
	}

	html, contentErr := page.Content(ctx)
	if contentErr != nil {
		if op.classifier.Classify(contentErr) != KindSessionInvalidated {
			return "", op.failure(contentErr, "content")
		}
		op.logger.Warn("content read lost its target; retrying on a fresh page",
			zap.String("url", brief), zap.Error(contentErr))

		op.closePage(page, brief)
		if page, err = op.session.NewPage(ctx); err != nil {
			page = nil
			return "", &Failure{Kind: KindSessionInvalidated, Message: fmt.Sprintf("replacement page: %v", err)}
		}
		if navErr := page.Navigate(ctx, rawURL, WaitDOMReady); navErr != nil {
			return "", op.failure(navErr, "re-navigate")
		}
		if html, contentErr = page.Content(ctx); contentErr != nil {
			return "", op.failure(contentErr, "content retry")
		}
	}

	op.logger.Debug("fetch ok",
		zap.String("url", brief),
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return html, nil
}

func (op *Operation) failure(err error, stage string) *Failure {
	return &Failure{
		Kind:    op.classifier.Classify(err),
		Message: fmt.Sprintf("%s: %v", stage, err),
	}
}

// closePage attempts the page's single close. Close failures are logged, not
// propagated.
func (op *Operation) closePage(page Page, brief string) {
	if err := page.Close(); err != nil {
		op.logger.Debug("page close failed", zap.String("url", brief), zap.Error(err))
	}
}

// urlBrief renders scheme://host/path without query or fragment, which may
// carry secrets.
func urlBrief(u *url.URL) string {
	host := u.Host
	if host == "" {
		host = "<no-host>"
	}
	return fmt.Sprintf("%s://%s%s", u.Scheme, host, u.Path)
}
