package alert

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/shortify/shortify/internal/classify"
	"github.com/shortify/shortify/internal/model"
)

// DefaultMaxPerRun caps notifications sent by one run.
const DefaultMaxPerRun = 5

// Notifier delivers a chat message and reports confirmed delivery.
type Notifier interface {
	Send(ctx context.Context, text string) bool
}

// Options configures a Manager.
type Options struct {
	Period    model.PeriodKey // only this period is alert-eligible
	MaxPerRun int
}

// Manager creates per-run alert sessions.
type Manager struct {
	store    StateStore
	notifier Notifier
	opts     Options
	logger   *slog.Logger
}

// NewManager returns a Manager. Zero options fall back to P#1H and DefaultMaxPerRun.
func NewManager(store StateStore, notifier Notifier, opts Options, logger *slog.Logger) *Manager {
	if opts.Period == "" {
		opts.Period = model.Period1H
	}
	if opts.MaxPerRun <= 0 {
		opts.MaxPerRun = DefaultMaxPerRun
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With("component", "alert.manager"),
	}
}

// Eligible reports whether period can raise alerts.
func (m *Manager) Eligible(period model.PeriodKey) bool {
	return period == m.opts.Period
}

// Begin loads the watermark map and starts a run. If the map cannot be
// loaded the run sends nothing and never writes the stored map.
func (m *Manager) Begin(ctx context.Context) *Run {
	state, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("alert state load failed, alerts paused for this run", "error", err)
		return &Run{manager: m, state: model.AlertState{}, unavailable: true}
	}
	m.logger.Info("alert state loaded", "count", len(state))
	return &Run{manager: m, state: state}
}

// Outcome is the result of considering one identifier.
type Outcome string

// Outcomes.
const (
	OutcomeIneligible       Outcome = "ineligible"
	OutcomeSuppressed       Outcome = "suppressed"
	OutcomeCapped           Outcome = "capped"
	OutcomeSent             Outcome = "sent"
	OutcomeFailed           Outcome = "failed"
	OutcomeStateUnavailable Outcome = "state_unavailable" // watermark map failed to load
)

// Candidate is one identifier's result for the current window.
type Candidate struct {
	ShortID    string
	Period     model.PeriodKey
	Suspicious int
	Total      int
	Window     model.Window
}

// Run tracks watermarks and the notification count for one orchestrator run.
// A Run is used from a single goroutine.
type Run struct {
	manager     *Manager
	state       model.AlertState
	sent        int
	unavailable bool
}

// Consider notifies when c's suspicious count rose above its watermark.
// On confirmed delivery the watermark advances and the map is persisted
// before returning.
func (r *Run) Consider(ctx context.Context, c Candidate) Outcome {
	m := r.manager
	if !m.Eligible(c.Period) || c.Suspicious <= 0 {
		return OutcomeIneligible
	}
	if r.unavailable {
		return OutcomeStateUnavailable
	}

	last := r.state[c.ShortID]
	logger := m.logger.With("short_id", c.ShortID, "period_key", c.Period.String())
	logger.Debug("alert check",
		"suspicious_clicks", c.Suspicious,
		"last_alerted", last,
		"notified", r.sent,
		"limit", m.opts.MaxPerRun,
	)

	if c.Suspicious <= last {
		return OutcomeSuppressed
	}
	if r.sent >= m.opts.MaxPerRun {
		logger.Info("alert cap reached, deferring", "suspicious_clicks", c.Suspicious)
		return OutcomeCapped
	}

	if !m.notifier.Send(ctx, Message(c, last)) {
		logger.Warn("alert delivery failed", "suspicious_clicks", c.Suspicious)
		return OutcomeFailed
	}

	r.sent++
	r.state[c.ShortID] = c.Suspicious
	if err := m.store.Save(ctx, r.state); err != nil {
		logger.Error("alert state save failed", "error", err)
	} else {
		logger.Info("alert sent", "suspicious_clicks", c.Suspicious, "previous", last)
	}
	return OutcomeSent
}

// Finish rewrites the full map once more at end of run. An unavailable run
// leaves the stored map untouched.
func (r *Run) Finish(ctx context.Context) error {
	if r.unavailable {
		return nil
	}
	if err := r.manager.store.Save(ctx, r.state); err != nil {
		r.manager.logger.Error("alert state final save failed", "error", err)
		return err
	}
	return nil
}

// Sent returns the number of confirmed notifications in this run.
func (r *Run) Sent() int {
	return r.sent
}

// Unavailable reports whether the watermark map failed to load.
func (r *Run) Unavailable() bool {
	return r.unavailable
}

// Watermark returns the current watermark for id.
func (r *Run) Watermark(id string) int {
	return r.state[id]
}

// Message renders the chat text for an increased suspicious count.
func Message(c Candidate, previous int) string {
	rate := 0.0
	if c.Total > 0 {
		rate = float64(c.Suspicious) / float64(c.Total)
	}

	var b strings.Builder
	b.WriteString("⚠️ Suspicious clicks increased\n")
	fmt.Fprintf(&b, "- shortId: `%s`\n", c.ShortID)
	fmt.Fprintf(&b, "- periodKey: %s\n", c.Period)
	fmt.Fprintf(&b, "- suspiciousClicks: %d (prev: %d)\n", c.Suspicious, previous)
	fmt.Fprintf(&b, "- totalClicks: %d\n", c.Total)
	fmt.Fprintf(&b, "- suspiciousRate: %d%%\n", int(math.Round(rate*100)))
	fmt.Fprintf(&b, "- window(KST): %s ~ %s", classify.DisplayTime(c.Window.Start), classify.DisplayTime(c.Window.End))
	return b.String()
}
