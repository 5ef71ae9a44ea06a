package fetch

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/websift/websift/internal/progress"
)

// Config controls Orchestrator behavior.
type Config struct {
	// Concurrency bounds the number of simultaneously active operations.
	Concurrency int
	// Timeout bounds each URL's operation; expiry is reported as
	// KindOperationTimeout without stranding the page handle.
	Timeout time.Duration
	// Settle is the post-navigation wait for client-rendered content. Zero
	// disables the wait; negative selects the default.
	Settle time.Duration
}

const (
	defaultConcurrency = 32
	defaultTimeout     = 45 * time.Second
	defaultSettle      = 250 * time.Millisecond
)

// Orchestrator runs page fetch operations over a URL set with bounded
// parallelism, per-URL timeouts, and aggregate accounting.
type Orchestrator struct {
	factory    SessionFactory
	classifier Classifier
	cfg        Config
	hub        *progress.Hub
	logger     *zap.Logger
}

// NewOrchestrator builds an Orchestrator. The hub may be nil.
func NewOrchestrator(factory SessionFactory, classifier Classifier, cfg Config, hub *progress.Hub, logger *zap.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Settle < 0 {
		cfg.Settle = defaultSettle
	}
	if classifier == nil {
		classifier = NewPatternClassifier(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		factory:    factory,
		classifier: classifier,
		cfg:        cfg,
		hub:        hub,
		logger:     logger,
	}
}

// FetchAll fetches every URL and returns one outcome per input, in completion
// order. A single URL's failure never aborts the batch; only session
// construction failure does.
func (o *Orchestrator) FetchAll(ctx context.Context, urls []*url.URL) ([]Outcome, error) {
	session, err := o.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser session: %w", err)
	}

	runID := progress.UUIDToBytes(uuid.New())
	total := len(urls)
	started := time.Now()
	o.emit(progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunStart,
		Note: fmt.Sprintf("urls=%d concurrency=%d", total, o.cfg.Concurrency)})
	o.logger.Debug("bulk fetch start",
		zap.Int("total_urls", total), zap.Int("concurrency", o.cfg.Concurrency))

	// Operations that outlive their timeout still hold a page handle; the
	// session must not be torn down until every one of them has finished
	// its cleanup.
	var inflight sync.WaitGroup

	jobs := make(chan *url.URL)
	results := make(chan Outcome)

	width := o.cfg.Concurrency
	if width > total {
		width = total
	}
	var workers sync.WaitGroup
	for i := 0; i < width; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for u := range jobs {
				results <- o.fetchOne(ctx, session, runID, u, &inflight)
			}
		}()
	}

	// Feed URLs in submission order; the jobs channel keeps queued-but-not-
	// started URLs FIFO.
	go func() {
		defer close(jobs)
		for _, u := range urls {
			select {
			case jobs <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, total)
	var counters Counters
	for out := range results {
		counters.Attempted++
		switch {
		case out.OK():
			counters.Succeeded++
		case out.Kind == KindOperationTimeout:
			counters.Failed++
			counters.TimedOut++
		default:
			counters.Failed++
		}
		if !out.OK() {
			o.logger.Debug("fetch failed",
				zap.String("url", urlBrief(out.URL)),
				zap.String("kind", string(out.Kind)),
				zap.String("message", out.Message),
			)
		}
		outcomes = append(outcomes, out)
		if len(outcomes)%100 == 0 || len(outcomes) == total {
			o.logger.Debug("bulk fetch progress",
				zap.Int("done", len(outcomes)),
				zap.Int("total", total),
				zap.Int("ok", counters.Succeeded),
				zap.Int("failed", counters.Failed),
				zap.Int("timed_out", counters.TimedOut),
				zap.Duration("elapsed", time.Since(started)),
			)
		}
	}

	inflight.Wait()
	if err := session.Close(ctx); err != nil {
		o.logger.Warn("session close failed", zap.Error(err))
	}

	o.emit(progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunDone,
		Dur: time.Since(started),
		Note: fmt.Sprintf("ok=%d failed=%d timed_out=%d",
			counters.Succeeded, counters.Failed, counters.TimedOut)})
	o.logger.Info("bulk fetch complete",
		zap.Int("total", counters.Attempted),
		zap.Int("ok", counters.Succeeded),
		zap.Int("failed", counters.Failed),
		zap.Int("timed_out", counters.TimedOut),
		zap.Duration("elapsed", time.Since(started)),
	)

	return outcomes, nil
}

// fetchOne races one operation against the per-URL timeout. On expiry the
// caller stops waiting and records the timeout; the operation keeps running
// long enough to close its page, which does not depend on the expired
// context.
func (o *Orchestrator) fetchOne(ctx context.Context, session Session, runID [16]byte, u *url.URL, inflight *sync.WaitGroup) Outcome {
	op := NewOperation(session, o.classifier, o.cfg.Settle, o.logger)
	started := time.Now()
	o.emit(progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageFetchStart,
		Site: u.Host, URL: urlBrief(u)})

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		html    string
		failure *Failure
	}
	resCh := make(chan result, 1)
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		html, failure := op.Fetch(opCtx, u)
		resCh <- result{html: html, failure: failure}
	}()

	timer := time.NewTimer(o.cfg.Timeout)
	defer timer.Stop()

	var out Outcome
	select {
	case res := <-resCh:
		out = Outcome{URL: u, Elapsed: time.Since(started)}
		if res.failure != nil {
			out.Kind = res.failure.Kind
			out.Message = res.failure.Message
		} else {
			out.HTML = res.html
		}
	case <-timer.C:
		o.logger.Warn("fetch timed out", zap.String("url", urlBrief(u)), zap.Duration("timeout", o.cfg.Timeout))
		out = Outcome{URL: u, Kind: KindOperationTimeout,
			Message: fmt.Sprintf("timeout after %s", o.cfg.Timeout), Elapsed: time.Since(started)}
	case <-ctx.Done():
		out = Outcome{URL: u, Kind: KindCanceled,
			Message: fmt.Sprintf("canceled: %v", ctx.Err()), Elapsed: time.Since(started)}
	}

	outcome := "success"
	if !out.OK() {
		outcome = string(out.Kind)
	}
	o.emit(progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageFetchDone,
		Site: u.Host, URL: urlBrief(u), Bytes: int64(len(out.HTML)), Outcome: outcome, Dur: out.Elapsed})
	return out
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.hub != nil {
		o.hub.Emit(evt)
	}
}
