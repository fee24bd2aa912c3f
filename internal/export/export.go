// Package export streams raw clicks as flattened fact records to object
// storage, resuming from a persisted checkpoint.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shortify/shortify/internal/analytics"
	"github.com/shortify/shortify/internal/classify"
	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/statestore"
)

// DefaultMaxClicksPerID bounds the events read per identifier.
const DefaultMaxClicksPerID = 1000

// EventReader reads click events for one identifier, bounds inclusive.
type EventReader interface {
	Range(ctx context.Context, shortID, start, end string, limit int) ([]model.ClickEvent, error)
}

// Sink persists one run's records under key.
type Sink interface {
	Write(ctx context.Context, key string, records []model.FactRecord) error
}

// Options configures an Exporter.
type Options struct {
	Enabled        bool
	Bucket         string
	Prefix         string
	CheckpointKey  string          // defaults to {Prefix}/state/last_export_ts.json
	Period         model.PeriodKey // the only period that exports
	MaxClicksPerID int
}

// Result describes one export run.
type Result struct {
	RunID      string `json:"runId"`
	Key        string `json:"key,omitempty"`
	From       string `json:"from"`
	To         string `json:"to"`
	Records    int    `json:"records"`
	Checkpoint string `json:"checkpoint"`
}

// Exporter copies new clicks since the last checkpoint to a Sink.
type Exporter struct {
	opts       Options
	checkpoint statestore.Store
	events     EventReader
	sink       Sink
	logger     *slog.Logger
	newSuffix  func() string
}

// New returns an Exporter.
func New(opts Options, checkpoint statestore.Store, events EventReader, sink Sink, logger *slog.Logger) *Exporter {
	if opts.Prefix == "" {
		opts.Prefix = "analytics"
	}
	opts.Prefix = strings.TrimSuffix(opts.Prefix, "/")
	if opts.CheckpointKey == "" {
		opts.CheckpointKey = opts.Prefix + "/state/last_export_ts.json"
	}
	if opts.Period == "" {
		opts.Period = model.Period1H
	}
	if opts.MaxClicksPerID <= 0 {
		opts.MaxClicksPerID = DefaultMaxClicksPerID
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Exporter{
		opts:       opts,
		checkpoint: checkpoint,
		events:     events,
		sink:       sink,
		logger:     logger.With("component", "export.exporter"),
		newSuffix:  func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		},
	}
}

// Applies reports whether runs of period should export.
func (e *Exporter) Applies(period model.PeriodKey) bool {
	return e.opts.Enabled && e.opts.Bucket != "" && period == e.opts.Period
}

// Run exports events in [checkpoint, window end) for every URL and then
// moves the checkpoint to the window end, even when nothing was found.
func (e *Exporter) Run(ctx context.Context, w model.Window, urls []model.TrackedURL) (Result, error) {
	from, err := e.loadCheckpoint(ctx)
	if err != nil {
		return Result{}, err
	}
	if from == "" {
		from = w.StartAt()
	}
	to := w.EndAt()

	res := Result{
		RunID:      RunID(w.End, e.newSuffix()),
		From:       from,
		To:         to,
		Checkpoint: from,
	}

	// A checkpoint ahead of this window means a later run already covered it.
	if from >= to {
		e.logger.Info("export checkpoint ahead of window", "checkpoint", from, "window_end", to)
		return res, nil
	}

	records := make([]model.FactRecord, 0)
	for _, u := range urls {
		if u.ShortID == "" {
			continue
		}
		events, err := e.events.Range(ctx, u.ShortID, from, to, e.opts.MaxClicksPerID)
		if err != nil {
			return res, fmt.Errorf("read clicks for %s: %w", u.ShortID, err)
		}
		for _, ev := range events {
			if ev.Timestamp >= to {
				continue
			}
			records = append(records, FactRecord(u.ShortID, ev))
		}
	}

	if len(records) > 0 {
		key := ObjectKey(e.opts.Prefix, w.End, res.RunID)
		if err := e.sink.Write(ctx, key, records); err != nil {
			return res, fmt.Errorf("write %s: %w", key, err)
		}
		res.Key = key
		res.Records = len(records)
		e.logger.Info("export written", "key", key, "records", len(records))
	}

	if err := e.checkpoint.PutJSON(ctx, e.opts.CheckpointKey, model.ExportCheckpoint{LastExportTs: to}); err != nil {
		return res, fmt.Errorf("save export checkpoint: %w", err)
	}
	res.Checkpoint = to
	return res, nil
}

func (e *Exporter) loadCheckpoint(ctx context.Context) (string, error) {
	var cp model.ExportCheckpoint
	err := e.checkpoint.GetJSON(ctx, e.opts.CheckpointKey, &cp)
	if errors.Is(err, statestore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load export checkpoint: %w", err)
	}
	return cp.LastExportTs, nil
}

// FactRecord flattens one click. Only the signature rule marks suspects.
func FactRecord(shortID string, ev model.ClickEvent) model.FactRecord {
	return model.FactRecord{
		Ts:        ev.Timestamp,
		ShortID:   shortID,
		Referer:   ev.RefererOrDirect(),
		Device:    classify.Device(ev.UserAgent),
		IsSuspect: analytics.IsSuspectSignature(ev),
		IPHash:    ev.IP,
		UserAgent: ev.UserAgent,
	}
}

// RunID builds "<compact end timestamp>-<suffix>", e.g. 20260224T030000Z-1a2b3c4d.
func RunID(end time.Time, suffix string) string {
	compact := strings.NewReplacer(":", "", "-", "").Replace(model.FormatTimestamp(end))
	return compact + "-" + suffix
}

// ObjectKey returns {prefix}/fact_clicks/dt=YYYY-MM-DD/hr=HH/{runID}.jsonl for
// the UTC date and hour of end.
func ObjectKey(prefix string, end time.Time, runID string) string {
	end = end.UTC()
	return fmt.Sprintf("%s/fact_clicks/dt=%s/hr=%s/%s.jsonl",
		prefix, end.Format("2006-01-02"), end.Format("15"), runID)
}
