package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shortify/shortify/internal/model"
)

// LinkPageSize is the number of catalog rows fetched per query.
const LinkPageSize = 100

// LinkRepository reads the URL catalog.
type LinkRepository struct {
	repo *Repository
}

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository(repo *Repository) *LinkRepository {
	return &LinkRepository{repo: repo}
}

// List returns up to limit tracked URLs, paging through the catalog in
// chunks of LinkPageSize. limit <= 0 reads the whole catalog. Order is
// unspecified to callers; they sort by click count themselves.
func (r *LinkRepository) List(ctx context.Context, limit int) ([]model.TrackedURL, error) {
	query := `
		SELECT short_id, original_url, title, click_count, created_at
		FROM links
		WHERE short_id > $1
		ORDER BY short_id
		LIMIT $2
	`

	out := make([]model.TrackedURL, 0)
	cursor := ""
	for {
		pageSize := LinkPageSize
		if limit > 0 {
			pageSize = min(pageSize, limit-len(out))
		}

		rows, err := r.repo.pool.Query(ctx, query, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("query links: %w", err)
		}
		page, err := pgx.CollectRows(rows, scanTrackedURL)
		if err != nil {
			return nil, fmt.Errorf("scan links: %w", err)
		}

		out = append(out, page...)
		if len(page) < pageSize || (limit > 0 && len(out) >= limit) {
			return out, nil
		}
		cursor = page[len(page)-1].ShortID
	}
}

// Get returns one tracked URL by identifier.
func (r *LinkRepository) Get(ctx context.Context, shortID string) (*model.TrackedURL, error) {
	query := `
		SELECT short_id, original_url, title, click_count, created_at
		FROM links
		WHERE short_id = $1
	`

	rows, err := r.repo.pool.Query(ctx, query, shortID)
	if err != nil {
		return nil, fmt.Errorf("query link: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanTrackedURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan link: %w", err)
	}
	return &u, nil
}

// Upsert creates or replaces a catalog row. Used by the seed script and tests.
func (r *LinkRepository) Upsert(ctx context.Context, u model.TrackedURL) error {
	query := `
		INSERT INTO links (short_id, original_url, title, click_count, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		ON CONFLICT (short_id) DO UPDATE SET
			original_url = EXCLUDED.original_url,
			title = EXCLUDED.title,
			click_count = EXCLUDED.click_count
	`

	var createdAt any
	if !u.CreatedAt.IsZero() {
		createdAt = u.CreatedAt
	}
	if _, err := r.repo.pool.Exec(ctx, query, u.ShortID, u.OriginalURL, u.Title, u.ClickCount, createdAt); err != nil {
		return fmt.Errorf("upsert link %s: %w", u.ShortID, err)
	}
	return nil
}

// IncrementClickCount adds delta to the lifetime click counter.
func (r *LinkRepository) IncrementClickCount(ctx context.Context, shortID string, delta int64) error {
	tag, err := r.repo.pool.Exec(ctx, `UPDATE links SET click_count = click_count + $2 WHERE short_id = $1`, shortID, delta)
	if err != nil {
		return fmt.Errorf("increment click count %s: %w", shortID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTrackedURL(row pgx.CollectableRow) (model.TrackedURL, error) {
	var u model.TrackedURL
	err := row.Scan(&u.ShortID, &u.OriginalURL, &u.Title, &u.ClickCount, &u.CreatedAt)
	return u, err
}
