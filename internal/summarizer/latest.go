package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/repository"
)

// MessageNoResult is reported when a period has no stored summary.
const MessageNoResult = "NO_AI_RESULT"

// Chart is the dashboard histogram.
type Chart struct {
	TimeBins []model.TimeBin `json:"timeBins"`
}

// RecommendationList carries the recommended share times.
type RecommendationList struct {
	Top3 []string `json:"top3"`
}

// ShapedInsight is the insight as the dashboard consumes it.
type ShapedInsight struct {
	Chart          Chart              `json:"chart"`
	Recommendation RecommendationList `json:"recommendation"`
}

// LatestResponse is the read-path view of the newest summary.
type LatestResponse struct {
	Found         bool             `json:"found"`
	PeriodKey     model.PeriodKey  `json:"periodKey"`
	Message       string           `json:"message,omitempty"`
	AIGeneratedAt string           `json:"aiGeneratedAt,omitempty"`
	AITrend       *json.RawMessage `json:"aiTrend,omitempty"`
	AIInsight     *ShapedInsight   `json:"aiInsight,omitempty"`
}

// Latest returns the newest summary for period with a 24-bin hourly chart
// summed from the chart period's per-identifier insights. The chart is
// rebuilt on every read and only when a summary exists.
func (p *Pipeline) Latest(ctx context.Context, period model.PeriodKey) (LatestResponse, error) {
	record, err := p.results.Latest(ctx, period)
	if errors.Is(err, repository.ErrNotFound) {
		return LatestResponse{PeriodKey: period, Found: false, Message: MessageNoResult}, nil
	}
	if err != nil {
		return LatestResponse{}, fmt.Errorf("latest ai result: %w", err)
	}

	bins, err := p.hourlyBins(ctx)
	if err != nil {
		return LatestResponse{}, err
	}

	trend := record.Trend
	resp := LatestResponse{
		Found:         true,
		PeriodKey:     record.PeriodKey,
		AIGeneratedAt: model.FormatTimestamp(record.GeneratedAt),
		AITrend:       &trend,
		AIInsight: &ShapedInsight{
			Chart:          Chart{TimeBins: bins},
			Recommendation: RecommendationList{Top3: storedTop3(record.Insight)},
		},
	}
	return resp, nil
}

func (p *Pipeline) hourlyBins(ctx context.Context) ([]model.TimeBin, error) {
	insights, err := p.insights.ListByPeriod(ctx, p.opts.ChartPeriod)
	if err != nil {
		return nil, fmt.Errorf("list %s insights: %w", p.opts.ChartPeriod, err)
	}
	return HourlyBins(insights), nil
}

// HourlyBins sums clicksByHour across insights into 24 zero-filled bins
// labelled "00".."23". Keys outside 0..23 are ignored.
func HourlyBins(insights []model.PeriodInsight) []model.TimeBin {
	var summed [24]int
	for _, in := range insights {
		for h, c := range in.ClicksByHour {
			hh, err := strconv.Atoi(h)
			if err != nil || hh < 0 || hh > 23 {
				continue
			}
			summed[hh] += c
		}
	}

	bins := make([]model.TimeBin, 24)
	for hh := range bins {
		bins[hh] = model.TimeBin{Time: fmt.Sprintf("%02d", hh), Clicks: summed[hh]}
	}
	return bins
}

func storedTop3(raw json.RawMessage) []string {
	top3 := []string{}
	if len(raw) == 0 {
		return top3
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return top3
	}
	if times := TopTimes(doc["top3"], RecommendationCount); times != nil {
		top3 = times
	}
	return top3
}
