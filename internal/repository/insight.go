package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shortify/shortify/internal/model"
)

// InsightRepository stores the latest insight per (identifier, period).
type InsightRepository struct {
	repo *Repository
}

// NewInsightRepository creates a new InsightRepository.
func NewInsightRepository(repo *Repository) *InsightRepository {
	return &InsightRepository{repo: repo}
}

// SuspiciousRate returns suspicious/total rounded half-up to four decimals,
// or 0 when total is 0.
func SuspiciousRate(suspicious, total int) float64 {
	if total <= 0 || suspicious <= 0 {
		return 0
	}
	// round(s*10^4/t) with halves rounded up, in integers
	scaled := (int64(suspicious)*20000 + int64(total)) / (2 * int64(total))
	return float64(scaled) / 10000
}

// Upsert overwrites the snapshot for (ShortID, PeriodKey) and returns the
// suspicious rate that was stored.
func (r *InsightRepository) Upsert(ctx context.Context, in model.PeriodInsight) (float64, error) {
	rate := SuspiciousRate(in.SuspiciousClicks, in.Total)

	byHour, byDay, byReferer, byDevice, err := encodeStats(in.Stats)
	if err != nil {
		return 0, err
	}

	generatedAt := in.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO period_insights (
			short_id, period_key, start_at, end_at, total_clicks,
			clicks_by_hour, clicks_by_day, clicks_by_referer, clicks_by_device,
			suspicious_clicks, suspicious_rate, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (short_id, period_key) DO UPDATE SET
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			total_clicks = EXCLUDED.total_clicks,
			clicks_by_hour = EXCLUDED.clicks_by_hour,
			clicks_by_day = EXCLUDED.clicks_by_day,
			clicks_by_referer = EXCLUDED.clicks_by_referer,
			clicks_by_device = EXCLUDED.clicks_by_device,
			suspicious_clicks = EXCLUDED.suspicious_clicks,
			suspicious_rate = EXCLUDED.suspicious_rate,
			generated_at = EXCLUDED.generated_at
	`

	_, err = r.repo.pool.Exec(ctx, query,
		in.ShortID,
		string(in.PeriodKey),
		in.StartAt,
		in.EndAt,
		in.Total,
		byHour,
		byDay,
		byReferer,
		byDevice,
		in.SuspiciousClicks,
		rate,
		generatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert insight %s/%s: %w", in.ShortID, in.PeriodKey, err)
	}
	return rate, nil
}

const insightColumns = `
	short_id, period_key, start_at, end_at, total_clicks,
	clicks_by_hour, clicks_by_day, clicks_by_referer, clicks_by_device,
	suspicious_clicks, suspicious_rate, generated_at
`

// Get returns the snapshot for one identifier and period.
func (r *InsightRepository) Get(ctx context.Context, shortID string, period model.PeriodKey) (*model.PeriodInsight, error) {
	rows, err := r.repo.pool.Query(ctx,
		`SELECT `+insightColumns+` FROM period_insights WHERE short_id = $1 AND period_key = $2`,
		shortID, string(period))
	if err != nil {
		return nil, fmt.Errorf("query insight: %w", err)
	}
	in, err := pgx.CollectExactlyOneRow(rows, scanInsight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan insight: %w", err)
	}
	return &in, nil
}

// ListByPeriod returns every snapshot stored for period.
func (r *InsightRepository) ListByPeriod(ctx context.Context, period model.PeriodKey) ([]model.PeriodInsight, error) {
	rows, err := r.repo.pool.Query(ctx,
		`SELECT `+insightColumns+` FROM period_insights WHERE period_key = $1 ORDER BY short_id`,
		string(period))
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanInsight)
	if err != nil {
		return nil, fmt.Errorf("scan insights: %w", err)
	}
	return out, nil
}

func scanInsight(row pgx.CollectableRow) (model.PeriodInsight, error) {
	var (
		in                                 model.PeriodInsight
		period                             string
		byHour, byDay, byReferer, byDevice []byte
	)
	err := row.Scan(
		&in.ShortID, &period, &in.StartAt, &in.EndAt, &in.Total,
		&byHour, &byDay, &byReferer, &byDevice,
		&in.SuspiciousClicks, &in.SuspiciousRate, &in.GeneratedAt,
	)
	if err != nil {
		return in, err
	}
	in.PeriodKey = model.PeriodKey(period)

	for _, f := range []struct {
		raw []byte
		dst *map[string]int
	}{
		{byHour, &in.ClicksByHour},
		{byDay, &in.ClicksByDay},
		{byReferer, &in.ClicksByReferer},
		{byDevice, &in.ClicksByDevice},
	} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return in, fmt.Errorf("decode insight histogram: %w", err)
		}
	}
	return in, nil
}

func encodeStats(s model.Stats) (byHour, byDay, byReferer, byDevice []byte, err error) {
	enc := func(m map[string]int) []byte {
		if err != nil {
			return nil
		}
		if m == nil {
			m = map[string]int{}
		}
		var b []byte
		b, err = json.Marshal(m)
		return b
	}
	byHour = enc(s.ClicksByHour)
	byDay = enc(s.ClicksByDay)
	byReferer = enc(s.ClicksByReferer)
	byDevice = enc(s.ClicksByDevice)
	if err != nil {
		err = fmt.Errorf("encode insight histograms: %w", err)
	}
	return
}
