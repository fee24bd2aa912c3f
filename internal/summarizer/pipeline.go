// Package summarizer builds global click summaries, asks a text generator to
// describe them and keeps the results for the dashboard.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/shortify/shortify/internal/analytics"
	"github.com/shortify/shortify/internal/classify"
	"github.com/shortify/shortify/internal/metrics"
	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/textgen"
	"golang.org/x/sync/errgroup"
)

// Defaults for the summary job.
const (
	DefaultTrendModel       = "amazon.nova-micro-v1:0"
	DefaultInsightModel     = "amazon.nova-lite-v1:0"
	DefaultTrendMaxTokens   = 260
	DefaultInsightMaxTokens = 120
	DefaultTopURLs          = 20
	DefaultTopTimeBins      = 10
	DefaultMaxURLs          = 200
	DefaultMaxClicksPerID   = 1000
	DefaultReadConcurrency  = 8

	// ReasonNoData marks a run skipped because the source window was empty.
	ReasonNoData = "NO_DATA"
	previewSize  = 5
)

// Catalog lists tracked URLs.
type Catalog interface {
	List(ctx context.Context, limit int) ([]model.TrackedURL, error)
}

// EventReader reads click events for one identifier, bounds inclusive.
type EventReader interface {
	Range(ctx context.Context, shortID, start, end string, limit int) ([]model.ClickEvent, error)
}

// ResultStore is the append-only summary log.
type ResultStore interface {
	Append(ctx context.Context, res *model.AIResult) error
	Latest(ctx context.Context, period model.PeriodKey) (*model.AIResult, error)
}

// InsightLister lists per-identifier snapshots for a period.
type InsightLister interface {
	ListByPeriod(ctx context.Context, period model.PeriodKey) ([]model.PeriodInsight, error)
}

// Options configures a Pipeline.
type Options struct {
	TrendModel       string
	InsightModel     string
	TrendMaxTokens   int
	InsightMaxTokens int
	TopURLs          int
	TopTimeBins      int
	MaxURLs          int
	MaxClicksPerID   int
	ReadConcurrency  int             // parallel per-identifier reads
	ChartPeriod      model.PeriodKey // histogram source for Latest
}

func (o *Options) setDefaults() {
	if o.TrendModel == "" {
		o.TrendModel = DefaultTrendModel
	}
	if o.InsightModel == "" {
		o.InsightModel = DefaultInsightModel
	}
	if o.TrendMaxTokens <= 0 {
		o.TrendMaxTokens = DefaultTrendMaxTokens
	}
	if o.InsightMaxTokens <= 0 {
		o.InsightMaxTokens = DefaultInsightMaxTokens
	}
	if o.TopURLs <= 0 {
		o.TopURLs = DefaultTopURLs
	}
	if o.TopTimeBins <= 0 {
		o.TopTimeBins = DefaultTopTimeBins
	}
	if o.MaxURLs <= 0 {
		o.MaxURLs = DefaultMaxURLs
	}
	if o.MaxClicksPerID <= 0 {
		o.MaxClicksPerID = DefaultMaxClicksPerID
	}
	if o.ReadConcurrency <= 0 {
		o.ReadConcurrency = DefaultReadConcurrency
	}
	if o.ChartPeriod == "" {
		o.ChartPeriod = model.Period24H
	}
}

// Pipeline runs summary jobs and serves the latest result.
type Pipeline struct {
	catalog  Catalog
	events   EventReader
	results  ResultStore
	insights InsightLister
	gen      textgen.Generator
	opts     Options
	clock    clock.Clock
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// Deps groups the collaborators of a Pipeline.
type Deps struct {
	Catalog   Catalog
	Events    EventReader
	Results   ResultStore
	Insights  InsightLister
	Generator textgen.Generator
	Clock     clock.Clock
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// New returns a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	opts.setDefaults()
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{
		catalog:  deps.Catalog,
		events:   deps.Events,
		results:  deps.Results,
		insights: deps.Insights,
		gen:      deps.Generator,
		opts:     opts,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With("component", "summarizer.pipeline"),
	}
}

// RunInput previews the ranked inputs sent to the generator.
type RunInput struct {
	URLsTopN     []RankedURL  `json:"urlsTopN"`
	TimeBinsTopN []RankedTime `json:"timeBinsTopN"`
}

// RunOutput holds the decoded documents; nil means absent.
type RunOutput struct {
	Trend   any `json:"trend"`
	Insight any `json:"insight"`
}

// RunRaw holds the raw generator texts; nil means the call failed.
type RunRaw struct {
	Trend   *string `json:"trend"`
	Insight *string `json:"insight"`
}

// RunResult is the outcome of one summary job.
type RunResult struct {
	AIPeriodKey             model.PeriodKey `json:"aiPeriodKey"`
	SourcePeriodKey         model.PeriodKey `json:"sourcePeriodKey"`
	StartAt                 string          `json:"startAt"`
	EndAt                   string          `json:"endAt"`
	TotalClicksSourceWindow int             `json:"totalClicksSourceWindow"`
	Skipped                 bool            `json:"skipped,omitempty"`
	Reason                  string          `json:"reason,omitempty"`
	Input                   *RunInput       `json:"input,omitempty"`
	Output                  *RunOutput      `json:"output,omitempty"`
	Raw                     *RunRaw         `json:"raw,omitempty"`
	Stored                  bool            `json:"stored"`
}

// Run aggregates the source window across the catalog, requests the trend
// and insight summaries and appends whatever decoded to the result log
// under aiPeriod. Only a catalog failure is returned; generator and storage
// errors degrade the result instead.
func (p *Pipeline) Run(ctx context.Context, aiPeriod, sourcePeriod model.PeriodKey) (RunResult, error) {
	w := model.WindowEndingAt(sourcePeriod, p.clock.Now())
	res := RunResult{
		AIPeriodKey:     aiPeriod,
		SourcePeriodKey: sourcePeriod,
		StartAt:         w.StartAt(),
		EndAt:           w.EndAt(),
	}

	urls, err := p.catalog.List(ctx, p.opts.MaxURLs)
	if err != nil {
		return res, fmt.Errorf("list urls: %w", err)
	}
	sort.SliceStable(urls, func(i, j int) bool { return urls[i].ClickCount > urls[j].ClickCount })

	reads := p.readWindow(ctx, urls, res.StartAt, res.EndAt)

	byURL := analytics.NewCounter()
	slots := analytics.NewCounter()
	for i, u := range urls {
		events := reads[i]
		if len(events) == 0 {
			continue
		}

		res.TotalClicksSourceWindow += len(events)
		if nu := classify.NormalizeURL(u.OriginalURL, classify.DefaultNormalizedURLLength); nu != "" {
			byURL.Add(nu, len(events))
		}
		for _, e := range events {
			if t, ok := e.Time(); ok {
				slots.Add(classify.FiveMinuteSlot(t), 1)
			}
		}
	}

	if res.TotalClicksSourceWindow == 0 || byURL.Len() == 0 || slots.Len() == 0 {
		res.Skipped = true
		res.Reason = ReasonNoData
		p.logger.Info("summary skipped", "reason", ReasonNoData, "source_period", sourcePeriod)
		return res, nil
	}

	topURLs := byURL.MostCommon(p.opts.TopURLs)
	topBins := slots.MostCommon(p.opts.TopTimeBins)
	res.Input = &RunInput{
		URLsTopN:     toURLClicks(topURLs[:min(previewSize, len(topURLs))]),
		TimeBinsTopN: toTimeClicks(topBins[:min(previewSize, len(topBins))]),
	}
	res.Output = &RunOutput{}
	res.Raw = &RunRaw{}

	if raw, ok := p.generate(ctx, "trend", p.opts.TrendModel, TrendPrompt(topURLs), p.opts.TrendMaxTokens); ok {
		res.Raw.Trend = &raw
		if v, ok := textgen.DecodeJSON(raw); ok {
			res.Output.Trend = v
		}
	}

	if raw, ok := p.generate(ctx, "insight", p.opts.InsightModel, InsightPrompt(topBins), p.opts.InsightMaxTokens); ok {
		res.Raw.Insight = &raw
		if obj, ok := textgen.DecodeObject(raw); ok {
			obj["top3"] = Recommend(TopTimes(obj["top3"], RecommendationCount), slots)
			res.Output.Insight = obj
		}
	}

	if res.Output.Trend == nil && res.Output.Insight == nil {
		return res, nil
	}

	record := &model.AIResult{PeriodKey: aiPeriod, GeneratedAt: p.clock.Now().UTC()}
	if record.Trend, err = marshalOptional(res.Output.Trend); err == nil {
		record.Insight, err = marshalOptional(res.Output.Insight)
	}
	if err == nil {
		err = p.results.Append(ctx, record)
	}
	if err != nil {
		p.logger.Error("summary store failed", "ai_period", aiPeriod, "error", err)
		return res, nil
	}

	res.Stored = true
	p.logger.Info("summary stored",
		"ai_period", aiPeriod,
		"source_period", sourcePeriod,
		"clicks", res.TotalClicksSourceWindow,
		"has_trend", record.Trend != nil,
		"has_insight", record.Insight != nil,
	)
	return res, nil
}

// readWindow reads each identifier's events concurrently. Results keep the
// catalog order; a failed read leaves its slot empty.
func (p *Pipeline) readWindow(ctx context.Context, urls []model.TrackedURL, start, end string) [][]model.ClickEvent {
	reads := make([][]model.ClickEvent, len(urls))

	var g errgroup.Group
	g.SetLimit(p.opts.ReadConcurrency)
	for i, u := range urls {
		i, u := i, u
		if u.ShortID == "" {
			continue
		}
		g.Go(func() error {
			events, err := p.events.Range(ctx, u.ShortID, start, end, p.opts.MaxClicksPerID)
			if err != nil {
				p.logger.Error("click read failed", "short_id", u.ShortID, "error", err)
				return nil
			}
			reads[i] = events
			return nil
		})
	}
	_ = g.Wait()
	return reads
}

func (p *Pipeline) generate(ctx context.Context, kind, modelID, prompt string, maxTokens int) (string, bool) {
	raw, err := p.gen.Generate(ctx, modelID, prompt, maxTokens)
	if err != nil {
		p.metrics.IncAIInvocation(kind, metrics.StatusFailed)
		p.logger.Error("text generation failed", "kind", kind, "model", modelID, "error", err)
		return "", false
	}
	p.metrics.IncAIInvocation(kind, metrics.StatusSuccess)
	return raw, true
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return b, nil
}
