package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/shortify/shortify/internal/model"
)

// ErrEmptyAIResult is returned when neither summary side is present.
var ErrEmptyAIResult = errors.New("ai result has neither trend nor insight")

// AIResultRepository appends and reads generated summaries.
type AIResultRepository struct {
	repo *Repository
}

// NewAIResultRepository creates a new AIResultRepository.
func NewAIResultRepository(repo *Repository) *AIResultRepository {
	return &AIResultRepository{repo: repo}
}

// Append stores a new record. ID and GeneratedAt are filled in when empty.
func (r *AIResultRepository) Append(ctx context.Context, res *model.AIResult) error {
	if len(res.Trend) == 0 && len(res.Insight) == 0 {
		return ErrEmptyAIResult
	}
	if res.GeneratedAt.IsZero() {
		res.GeneratedAt = time.Now().UTC()
	}
	if res.ID == "" {
		res.ID = ulid.MustNew(ulid.Timestamp(res.GeneratedAt), ulid.DefaultEntropy()).String()
	}

	query := `
		INSERT INTO ai_results (id, period_key, generated_at, trend, insight)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.repo.pool.Exec(ctx, query,
		res.ID,
		string(res.PeriodKey),
		res.GeneratedAt,
		nullableJSON(res.Trend),
		nullableJSON(res.Insight),
	)
	if err != nil {
		return fmt.Errorf("append ai result: %w", err)
	}
	return nil
}

// Latest returns the newest record for period.
func (r *AIResultRepository) Latest(ctx context.Context, period model.PeriodKey) (*model.AIResult, error) {
	query := `
		SELECT id, period_key, generated_at, trend, insight
		FROM ai_results
		WHERE period_key = $1
		ORDER BY generated_at DESC, id DESC
		LIMIT 1
	`

	var (
		res            model.AIResult
		key            string
		trend, insight []byte
	)
	err := r.repo.pool.QueryRow(ctx, query, string(period)).Scan(&res.ID, &key, &res.GeneratedAt, &trend, &insight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query latest ai result: %w", err)
	}

	res.PeriodKey = model.PeriodKey(key)
	if trend != nil {
		res.Trend = json.RawMessage(trend)
	}
	if insight != nil {
		res.Insight = json.RawMessage(insight)
	}
	return &res, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
