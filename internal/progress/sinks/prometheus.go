package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/websift/websift/internal/progress"
)

// PrometheusSink exports pipeline progress metrics. It owns all collectors
// for runs and per-site fetch/extract counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runRuntime    prometheus.Histogram

	fetches       *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	blocks        *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "websift_runs_started_total",
			Help: "Total orchestration runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "websift_runs_completed_total",
			Help: "Total orchestration runs completed.",
		}),
		runRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "websift_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "websift_fetches_total",
			Help: "Fetch completions partitioned by site and outcome.",
		}, []string{"site", "outcome"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "websift_fetch_bytes_total",
			Help: "Rendered HTML bytes per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "websift_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by site and outcome.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 45},
		}, []string{"site", "outcome"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "websift_text_blocks_total",
			Help: "Extracted text blocks per site.",
		}, []string{"site"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runRuntime,
		s.fetches,
		s.fetchBytes,
		s.fetchDuration,
		s.blocks,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. Safe for
// concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.Inc()
		if evt.Dur > 0 {
			s.runRuntime.Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchDone:
		site := siteLabel(evt.Site)
		outcome := evt.Outcome
		if outcome == "" {
			outcome = "unknown"
		}
		s.fetches.WithLabelValues(site, outcome).Inc()
		if evt.Bytes > 0 {
			s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(site, outcome).Observe(evt.Dur.Seconds())
		}
	case progress.StageExtractDone:
		if evt.Blocks > 0 {
			s.blocks.WithLabelValues(siteLabel(evt.Site)).Add(float64(evt.Blocks))
		}
	}
}

func siteLabel(site string) string {
	if site == "" {
		return "unknown"
	}
	return site
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
