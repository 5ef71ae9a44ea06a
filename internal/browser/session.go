// Package browser owns the headless Chrome process and browsing context used
// by the fetch pipeline, handing out short-lived page handles on demand.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/websift/websift/internal/fetch"
)

// ErrSessionClosed indicates a page was requested after session teardown.
var ErrSessionClosed = errors.New("browser session closed")

// Config controls the headless Chrome session.
type Config struct {
	UserAgent string
	Headless  bool
}

// Session owns one exec allocator and one browser context for the duration of
// an orchestration run. Page creation is serialized through a single
// session-owned goroutine, so driver state is confined to one logical worker
// by construction rather than by convention.
type Session struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	userAgent     string
	logger        *zap.Logger

	requests  chan pageRequest
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

type pageRequest struct {
	ctx   context.Context
	reply chan pageReply
}

type pageReply struct {
	page *Page
	err  error
}

// NewSession launches headless Chrome and builds one browsing context.
// Any failure here is fatal to the whole run; there is no partial-session
// recovery.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	logger.Debug("headless chrome launched")

	s := &Session{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		userAgent:     cfg.UserAgent,
		logger:        logger,
		requests:      make(chan pageRequest),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Factory adapts NewSession to the orchestrator's session factory signature.
func Factory(cfg Config, logger *zap.Logger) fetch.SessionFactory {
	return func(context.Context) (fetch.Session, error) {
		return NewSession(cfg, logger)
	}
}

// NewPage returns a fresh page bound to the session's context.
func (s *Session) NewPage(ctx context.Context) (fetch.Page, error) {
	req := pageRequest{ctx: ctx, reply: make(chan pageReply, 1)}
	select {
	case s.requests <- req:
	case <-s.stopCh:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("new page wait: %w", ctx.Err())
	}
	// The actor always replies once a request is accepted; waiting here
	// unconditionally means no created tab can be orphaned by a context race.
	rep := <-req.reply
	if rep.err != nil {
		return nil, rep.err
	}
	return rep.page, nil
}

// Close stops the page actor and tears down the browser and allocator. All
// page handles must be closed before Close is called.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.stopCh) })
	select {
	case <-s.doneCh:
	case <-ctx.Done():
		return fmt.Errorf("session close wait: %w", ctx.Err())
	}
	s.browserCancel()
	s.allocCancel()
	return nil
}

func (s *Session) run() {
	defer close(s.doneCh)
	for {
		select {
		case req := <-s.requests:
			req.reply <- s.openPage(req.ctx)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Session) openPage(ctx context.Context) pageReply {
	if err := ctx.Err(); err != nil {
		return pageReply{err: fmt.Errorf("new page: %w", err)}
	}
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	return pageReply{page: newPage(tabCtx, cancelTab, s.userAgent, s.logger)}
}

// Page is one tab. Closing cancels the tab context, which closes the target.
type Page struct {
	tabCtx    context.Context
	cancel    context.CancelFunc
	userAgent string
	logger    *zap.Logger
	setupOnce sync.Once
	closeOnce sync.Once
}

func newPage(tabCtx context.Context, cancel context.CancelFunc, userAgent string, logger *zap.Logger) *Page {
	return &Page{tabCtx: tabCtx, cancel: cancel, userAgent: userAgent, logger: logger}
}

// Navigate loads rawURL and blocks until the requested readiness tier holds.
func (p *Page) Navigate(ctx context.Context, rawURL string, wait fetch.WaitMode) error {
	actions := chromedp.Tasks{p.setupAction(), chromedp.Navigate(rawURL)}
	actions = append(actions, waitTasks(wait)...)
	if err := p.run(ctx, actions); err != nil {
		return fmt.Errorf("navigate (%s): %w", wait, err)
	}
	return nil
}

// setupAction enables the network domain and pins the user agent on the tab's
// first navigation. Runs at most once per page.
func (p *Page) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var setupErr error
		p.setupOnce.Do(func() {
			if err := network.Enable().Do(ctx); err != nil {
				setupErr = fmt.Errorf("enable network domain: %w", err)
				return
			}
			if p.userAgent != "" {
				if err := emulation.SetUserAgentOverride(p.userAgent).Do(ctx); err != nil {
					setupErr = fmt.Errorf("set user-agent: %w", err)
				}
			}
		})
		return setupErr
	})
}

// Settle waits d inside the tab to let client-rendered content paint.
func (p *Page) Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if err := p.run(ctx, chromedp.Sleep(d)); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	return nil
}

// Content returns the rendered document markup.
func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// Close cancels the tab context. Idempotent.
func (p *Page) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}

// run executes actions against the tab while honoring the caller's context:
// canceling ctx aborts the actions without tearing down the tab.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// waitTasks maps a readiness tier to chromedp wait actions. DOM-ready waits
// for the body to attach; full-load additionally polls document.readyState.
func waitTasks(wait fetch.WaitMode) chromedp.Tasks {
	if wait == fetch.WaitFullLoad {
		return chromedp.Tasks{
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.PollFunction(`() => document.readyState === "complete"`, nil,
				chromedp.WithPollingInterval(100*time.Millisecond)),
		}
	}
	return chromedp.Tasks{chromedp.WaitReady("body", chromedp.ByQuery)}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
