package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shortify/shortify/internal/model"
)

// Trigger job names.
const (
	TriggerAggregateOnly = "aggregate_only"
	TriggerAIOnly        = "ai_only"
)

// Trigger defaults.
const (
	DefaultPeriodKey       = model.Period1H
	DefaultAIPeriodKey     = model.Period30Min
	DefaultSourcePeriodKey = model.Period24H
)

var (
	// ErrInvalidTrigger wraps trigger payloads that cannot be decoded or name
	// an unknown period.
	ErrInvalidTrigger = errors.New("invalid trigger")
	// ErrSummarizerDisabled is returned by RunAI when no summarizer is wired.
	ErrSummarizerDisabled = errors.New("summarizer disabled")
)

// Trigger is the scheduler and invocation payload.
type Trigger struct {
	Job             string `json:"job,omitempty"`
	PeriodKey       string `json:"periodKey,omitempty"`
	AIPeriodKey     string `json:"aiPeriodKey,omitempty"`
	SourcePeriodKey string `json:"sourcePeriodKey,omitempty"`
}

// ParseTrigger decodes a trigger payload. An empty payload is the default
// aggregation trigger.
func ParseTrigger(raw []byte) (Trigger, error) {
	var t Trigger
	if len(strings.TrimSpace(string(raw))) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
	}
	return t, nil
}

func periodOr(s string, def model.PeriodKey) (model.PeriodKey, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	p, err := model.ParsePeriodKey(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
	}
	return p, nil
}

// Invoke runs the job t names. Any job other than ai_only aggregates.
// Empty summary periods fall back to Options.AIPeriod and Options.SourcePeriod.
// The result is an AggregationResult or a summarizer.RunResult.
func (a *Analyzer) Invoke(ctx context.Context, t Trigger) (any, error) {
	if t.Job == TriggerAIOnly {
		aiPeriod, err := periodOr(t.AIPeriodKey, a.opts.AIPeriod)
		if err != nil {
			return nil, err
		}
		sourcePeriod, err := periodOr(t.SourcePeriodKey, a.opts.SourcePeriod)
		if err != nil {
			return nil, err
		}
		return a.RunAI(ctx, aiPeriod, sourcePeriod)
	}

	period, err := periodOr(t.PeriodKey, DefaultPeriodKey)
	if err != nil {
		return nil, err
	}
	return a.RunAggregation(ctx, period)
}
