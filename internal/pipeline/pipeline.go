// Package pipeline runs the end-to-end flow: pull URLs out of a text blob,
// fetch the rendered pages, reduce them to text blocks, and rank the blocks
// against a query.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/websift/websift/internal/extract"
	"github.com/websift/websift/internal/fetch"
	"github.com/websift/websift/internal/progress"
	"github.com/websift/websift/internal/rank"
	"github.com/websift/websift/internal/search"
	"github.com/websift/websift/internal/urlset"
)

// Fetcher retrieves rendered HTML for a URL set.
type Fetcher interface {
	FetchAll(ctx context.Context, urls []*url.URL) ([]fetch.Outcome, error)
}

// Config controls ranking behavior.
type Config struct {
	// RelevanceThreshold for embedding-backed search; <= 0 uses the default.
	RelevanceThreshold float64
}

// Result carries everything a run produced.
type Result struct {
	// Outcomes holds one entry per fetched URL, successes and failures both.
	Outcomes []fetch.Outcome
	// Docs are the extracted text blocks across all successful pages.
	Docs []extract.WebDoc
	// Findings are the blocks relevant to the query, most relevant first for
	// the embedding backend, document order for the substring backend.
	Findings []search.Finding
}

// Pipeline wires the stages together. A nil embedder selects the substring
// search backend.
type Pipeline struct {
	fetcher   Fetcher
	extractor *extract.Extractor
	embedder  rank.Embedder
	cfg       Config
	hub       *progress.Hub
	logger    *zap.Logger
}

// New builds a Pipeline. The hub may be nil.
func New(fetcher Fetcher, extractor *extract.Extractor, embedder rank.Embedder, cfg Config, hub *progress.Hub, logger *zap.Logger) *Pipeline {
	if extractor == nil {
		extractor = extract.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		embedder:  embedder,
		cfg:       cfg,
		hub:       hub,
		logger:    logger,
	}
}

// Run executes the full flow over haystack. An empty query skips ranking and
// returns the extracted docs only.
func (p *Pipeline) Run(ctx context.Context, haystack, query string) (*Result, error) {
	urls := urlset.Extract(haystack)
	if urls.Len() == 0 {
		return nil, fmt.Errorf("no urls found in input")
	}
	p.logger.Info("urls extracted", zap.Int("count", urls.Len()))

	outcomes, err := p.fetcher.FetchAll(ctx, urls.URLs())
	if err != nil {
		return nil, fmt.Errorf("fetch pages: %w", err)
	}

	runID := progress.UUIDToBytes(uuid.New())
	result := &Result{Outcomes: outcomes}
	for _, out := range outcomes {
		if !out.OK() {
			continue
		}
		docs, err := p.extractor.Extract(out.URL.String(), out.HTML)
		if err != nil {
			// One malformed page never poisons the batch.
			p.logger.Warn("extraction failed",
				zap.String("url", out.URL.String()), zap.Error(err))
			continue
		}
		result.Docs = append(result.Docs, docs...)
		if p.hub != nil {
			p.hub.Emit(progress.Event{RunID: runID, TS: time.Now().UTC(),
				Stage: progress.StageExtractDone, Site: out.URL.Host,
				URL: out.URL.String(), Blocks: int64(len(docs))})
		}
	}
	p.logger.Info("text extraction complete", zap.Int("blocks", len(result.Docs)))

	if query == "" || len(result.Docs) == 0 {
		return result, nil
	}

	if p.embedder == nil {
		result.Findings = search.Substring(query, result.Docs)
		p.logger.Info("substring search complete", zap.Int("findings", len(result.Findings)))
		return result, nil
	}

	p.logger.Info("embedding documents", zap.Int("count", len(result.Docs)))
	store, err := rank.NewStore(ctx, p.embedder, result.Docs)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	findings, err := store.Search(ctx, query, p.cfg.RelevanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("rank documents: %w", err)
	}
	result.Findings = findings
	p.logger.Info("ranking complete", zap.Int("findings", len(findings)))
	return result, nil
}
