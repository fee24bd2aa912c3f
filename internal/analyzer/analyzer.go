// Package analyzer composes the per-period aggregation run and the summary
// job behind one invocation surface.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/shortify/shortify/internal/alert"
	"github.com/shortify/shortify/internal/analytics"
	"github.com/shortify/shortify/internal/export"
	"github.com/shortify/shortify/internal/metrics"
	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/summarizer"
)

// Job names.
const (
	JobAggregate = "aggregate"
	JobAI        = "ai"
)

// Defaults for an aggregation run.
const (
	DefaultMaxURLs        = 200
	DefaultMaxClicksPerID = 1000
	DefaultTopReferers    = 5
)

// Catalog lists tracked URLs.
type Catalog interface {
	List(ctx context.Context, limit int) ([]model.TrackedURL, error)
}

// EventReader reads click events for one identifier, bounds inclusive.
type EventReader interface {
	Range(ctx context.Context, shortID, start, end string, limit int) ([]model.ClickEvent, error)
}

// InsightWriter overwrites the snapshot for (identifier, period) and returns
// the stored suspicious rate.
type InsightWriter interface {
	Upsert(ctx context.Context, in model.PeriodInsight) (float64, error)
}

// Exporter is the incremental fact export run on eligible periods.
type Exporter interface {
	Applies(period model.PeriodKey) bool
	Run(ctx context.Context, w model.Window, urls []model.TrackedURL) (export.Result, error)
}

// Summarizer runs the summary job.
type Summarizer interface {
	Run(ctx context.Context, aiPeriod, sourcePeriod model.PeriodKey) (summarizer.RunResult, error)
}

// Options configures an Analyzer.
type Options struct {
	MaxURLs        int
	MaxClicksPerID int
	TopReferers    int

	// Periods used by Invoke when a trigger leaves them empty.
	AIPeriod     model.PeriodKey
	SourcePeriod model.PeriodKey
}

// Deps groups the collaborators of an Analyzer. Exporter, Emitter and
// Summarizer may be nil.
type Deps struct {
	Catalog    Catalog
	Events     EventReader
	Insights   InsightWriter
	Detector   analytics.Detector
	Alerts     *alert.Manager
	Exporter   Exporter
	Summarizer Summarizer
	Emitter    metrics.Emitter
	Metrics    metrics.Recorder
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Analyzer runs aggregation and summary jobs.
type Analyzer struct {
	catalog    Catalog
	events     EventReader
	insights   InsightWriter
	detector   analytics.Detector
	alerts     *alert.Manager
	exporter   Exporter
	summarizer Summarizer
	emitter    metrics.Emitter
	metrics    metrics.Recorder
	clock      clock.Clock
	opts       Options
	logger     *slog.Logger
}

// New returns an Analyzer.
func New(deps Deps, opts Options) *Analyzer {
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = DefaultMaxURLs
	}
	if opts.MaxClicksPerID <= 0 {
		opts.MaxClicksPerID = DefaultMaxClicksPerID
	}
	if opts.TopReferers <= 0 {
		opts.TopReferers = DefaultTopReferers
	}
	if opts.AIPeriod == "" {
		opts.AIPeriod = DefaultAIPeriodKey
	}
	if opts.SourcePeriod == "" {
		opts.SourcePeriod = DefaultSourcePeriodKey
	}
	if deps.Detector == (analytics.Detector{}) {
		deps.Detector = analytics.NewDetector(0, 0)
	}
	if deps.Emitter == nil {
		deps.Emitter = metrics.NoopEmitter{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Analyzer{
		catalog:    deps.Catalog,
		events:     deps.Events,
		insights:   deps.Insights,
		detector:   deps.Detector,
		alerts:     deps.Alerts,
		exporter:   deps.Exporter,
		summarizer: deps.Summarizer,
		emitter:    deps.Emitter,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		opts:       opts,
		logger:     deps.Logger.With("component", "analyzer"),
	}
}

// AggregationResult summarizes one aggregation run.
type AggregationResult struct {
	PeriodKey         model.PeriodKey `json:"periodKey"`
	StartAt           string          `json:"startAt"`
	EndAt             string          `json:"endAt"`
	ProcessedURLs     int             `json:"processedUrls"`
	TotalClicksWindow int             `json:"totalClicksWindow"`
}

// RunAggregation computes and stores a snapshot for every tracked URL over
// the window of period ending now. Only a catalog failure fails the run; a
// failed identifier is logged and skipped.
func (a *Analyzer) RunAggregation(ctx context.Context, period model.PeriodKey) (AggregationResult, error) {
	started := a.clock.Now()
	w := model.WindowEndingAt(period, started)
	res := AggregationResult{PeriodKey: period, StartAt: w.StartAt(), EndAt: w.EndAt()}

	urls, err := a.catalog.List(ctx, a.opts.MaxURLs)
	if err != nil {
		a.metrics.IncRun(JobAggregate, metrics.StatusFailed)
		return res, fmt.Errorf("list urls: %w", err)
	}

	if a.exporter != nil && a.exporter.Applies(period) {
		a.runExport(ctx, w, urls)
	}

	sort.SliceStable(urls, func(i, j int) bool { return urls[i].ClickCount > urls[j].ClickCount })

	var run *alert.Run
	if a.alerts != nil && a.alerts.Eligible(period) {
		run = a.alerts.Begin(ctx)
	}

	for _, u := range urls {
		if u.ShortID == "" {
			continue
		}
		clicks, err := a.processURL(ctx, u.ShortID, period, w, run)
		if err != nil {
			a.metrics.IncItemFailure(period.String())
			a.logger.Error("url aggregation failed", "short_id", u.ShortID, "period_key", period, "error", err)
			continue
		}
		res.ProcessedURLs++
		res.TotalClicksWindow += clicks
	}

	if run != nil {
		_ = run.Finish(ctx)
	}

	a.metrics.AddProcessedURLs(period.String(), res.ProcessedURLs)
	a.metrics.AddWindowClicks(period.String(), res.TotalClicksWindow)
	if err := a.emitter.Emit(ctx, period.String(), map[string]float64{
		metrics.MetricProcessedURLs:     float64(res.ProcessedURLs),
		metrics.MetricTotalClicksWindow: float64(res.TotalClicksWindow),
	}); err != nil {
		a.logger.Warn("metric emit failed", "period_key", period, "error", err)
	}

	a.metrics.IncRun(JobAggregate, metrics.StatusSuccess)
	a.metrics.ObserveRunDuration(JobAggregate, a.clock.Since(started))
	a.logger.Info("aggregation finished",
		"period_key", period,
		"processed_urls", res.ProcessedURLs,
		"total_clicks", res.TotalClicksWindow,
	)
	return res, nil
}

func (a *Analyzer) processURL(ctx context.Context, shortID string, period model.PeriodKey, w model.Window, run *alert.Run) (int, error) {
	events, err := a.events.Range(ctx, shortID, w.StartAt(), w.EndAt(), a.opts.MaxClicksPerID)
	if err != nil {
		return 0, fmt.Errorf("read clicks: %w", err)
	}

	stats := analytics.Aggregate(events, a.opts.TopReferers)
	suspicious := a.detector.CountSuspicious(events)

	if run != nil && suspicious > 0 {
		outcome := run.Consider(ctx, alert.Candidate{
			ShortID:    shortID,
			Period:     period,
			Suspicious: suspicious,
			Total:      stats.Total,
			Window:     w,
		})
		if outcome != alert.OutcomeIneligible {
			a.metrics.IncAlert(string(outcome))
		}
	}

	if _, err := a.insights.Upsert(ctx, model.PeriodInsight{
		ShortID:          shortID,
		PeriodKey:        period,
		StartAt:          w.StartAt(),
		EndAt:            w.EndAt(),
		Stats:            stats,
		SuspiciousClicks: suspicious,
		GeneratedAt:      a.clock.Now().UTC(),
	}); err != nil {
		return 0, fmt.Errorf("upsert insight: %w", err)
	}
	return stats.Total, nil
}

func (a *Analyzer) runExport(ctx context.Context, w model.Window, urls []model.TrackedURL) {
	res, err := a.exporter.Run(ctx, w, urls)
	if err != nil {
		a.logger.Error("export failed", "run_id", res.RunID, "error", err)
		return
	}
	a.metrics.AddExportedRecords(res.Records)
	a.logger.Info("export finished",
		"run_id", res.RunID,
		"from", res.From,
		"to", res.To,
		"records", res.Records,
	)
}

// RunAI runs the summary job for aiPeriod over the sourcePeriod window.
func (a *Analyzer) RunAI(ctx context.Context, aiPeriod, sourcePeriod model.PeriodKey) (summarizer.RunResult, error) {
	if a.summarizer == nil {
		return summarizer.RunResult{}, ErrSummarizerDisabled
	}

	started := a.clock.Now()
	res, err := a.summarizer.Run(ctx, aiPeriod, sourcePeriod)
	if err != nil {
		a.metrics.IncRun(JobAI, metrics.StatusFailed)
		return res, fmt.Errorf("ai job: %w", err)
	}

	status := metrics.StatusSuccess
	if res.Skipped {
		status = metrics.StatusSkipped
	}
	a.metrics.IncRun(JobAI, status)
	a.metrics.ObserveRunDuration(JobAI, a.clock.Since(started))
	return res, nil
}
