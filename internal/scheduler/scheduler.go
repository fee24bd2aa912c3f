// Package scheduler fires invocation triggers on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shortify/shortify/internal/analyzer"
	"github.com/shortify/shortify/internal/model"
)

// ErrUnknownJob is returned for schedule names that map to no trigger.
var ErrUnknownJob = errors.New("unknown scheduled job")

// Invoker runs one trigger.
type Invoker interface {
	Invoke(ctx context.Context, t analyzer.Trigger) (any, error)
}

// TriggerFor maps a schedule name to its trigger: "ai" runs the summary job
// with default periods, "aggregate_<period>" (e.g. aggregate_1h,
// aggregate_30min) aggregates that period.
func TriggerFor(name string) (analyzer.Trigger, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "ai" {
		return analyzer.Trigger{Job: analyzer.TriggerAIOnly}, nil
	}

	suffix, ok := strings.CutPrefix(name, "aggregate_")
	if !ok {
		return analyzer.Trigger{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	period, err := model.ParsePeriodKey("P#" + suffix)
	if err != nil {
		return analyzer.Trigger{}, fmt.Errorf("%w: %q: %w", ErrUnknownJob, name, err)
	}
	return analyzer.Trigger{Job: analyzer.TriggerAggregateOnly, PeriodKey: period.String()}, nil
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron    *cron.Cron
	invoker Invoker
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Scheduler. Each fired job gets its own context bounded by timeout.
func New(invoker Invoker, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		invoker: invoker,
		timeout: timeout,
		logger:  logger.With("component", "scheduler"),
	}
}

// Add registers name at spec.
func (s *Scheduler) Add(name, spec string) error {
	trigger, err := TriggerFor(name)
	if err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(spec, func() { s.fire(name, trigger) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) fire(name string, trigger analyzer.Trigger) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if _, err := s.invoker.Invoke(ctx, trigger); err != nil {
		s.logger.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	s.logger.Info("scheduled job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
}

// Len returns the number of registered entries.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops firing new jobs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
