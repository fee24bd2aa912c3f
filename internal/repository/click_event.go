package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/shortify/shortify/internal/model"
)

// ClickPageSize is the maximum number of events fetched per query.
const ClickPageSize = 1000

// ClickEventRepository provides database access for click events.
type ClickEventRepository struct {
	repo *Repository
}

// NewClickEventRepository creates a new ClickEventRepository.
func NewClickEventRepository(repo *Repository) *ClickEventRepository {
	return &ClickEventRepository{repo: repo}
}

// Range returns events for shortID with start <= ts <= end, newest first,
// paging ClickPageSize rows at a time. limit > 0 caps the result.
func (r *ClickEventRepository) Range(ctx context.Context, shortID, start, end string, limit int) ([]model.ClickEvent, error) {
	first := `
		SELECT id, short_id, ts, ip, user_agent, referer
		FROM click_events
		WHERE short_id = $1 AND ts BETWEEN $2 AND $3
		ORDER BY ts DESC, id DESC
		LIMIT $4
	`
	next := `
		SELECT id, short_id, ts, ip, user_agent, referer
		FROM click_events
		WHERE short_id = $1 AND ts BETWEEN $2 AND $3 AND (ts, id) < ($5, $6)
		ORDER BY ts DESC, id DESC
		LIMIT $4
	`

	out := make([]model.ClickEvent, 0)
	var lastTs, lastID string
	for {
		pageSize := ClickPageSize
		if limit > 0 {
			pageSize = min(pageSize, limit-len(out))
		}

		var (
			rows pgx.Rows
			err  error
		)
		if lastID == "" {
			rows, err = r.repo.pool.Query(ctx, first, shortID, start, end, pageSize)
		} else {
			rows, err = r.repo.pool.Query(ctx, next, shortID, start, end, pageSize, lastTs, lastID)
		}
		if err != nil {
			return nil, fmt.Errorf("query click events: %w", err)
		}

		page, err := pgx.CollectRows(rows, scanClickRow)
		if err != nil {
			return nil, fmt.Errorf("scan click events: %w", err)
		}
		for _, row := range page {
			out = append(out, row.event)
		}

		if len(page) < pageSize || (limit > 0 && len(out) >= limit) {
			return out, nil
		}
		lastTs, lastID = page[len(page)-1].event.Timestamp, page[len(page)-1].id
	}
}

// BulkInsert validates and stores events. Each row gets a ULID primary key.
func (r *ClickEventRepository) BulkInsert(ctx context.Context, events []model.ClickEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO click_events (id, short_id, ts, ip, user_agent, referer)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	batch := &pgx.Batch{}
	for i, event := range events {
		if err := event.Validate(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		batch.Queue(query,
			ulid.Make().String(),
			event.ShortID,
			event.Timestamp,
			event.IP,
			event.UserAgent,
			event.Referer,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

type clickRow struct {
	id    string
	event model.ClickEvent
}

func scanClickRow(row pgx.CollectableRow) (clickRow, error) {
	var c clickRow
	err := row.Scan(&c.id, &c.event.ShortID, &c.event.Timestamp, &c.event.IP, &c.event.UserAgent, &c.event.Referer)
	return c, err
}
