//go:build integration

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/testutil"
)

// ============================================================================
// Catalog
// ============================================================================

func TestIntegrationLinkRepository_ListPages(t *testing.T) {
	ctx, repo := newTestEnv(t)
	links := NewLinkRepository(repo)

	for i := 0; i < LinkPageSize+25; i++ {
		u := testutil.NewTestURL(t, testutil.UniqueShortID("l"), int64(i))
		if err := links.Upsert(ctx, u); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	all, err := links.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != LinkPageSize+25 {
		t.Fatalf("expected %d links, got %d", LinkPageSize+25, len(all))
	}

	capped, err := links.List(ctx, 110)
	if err != nil {
		t.Fatalf("List(110) failed: %v", err)
	}
	if len(capped) != 110 {
		t.Fatalf("expected 110 links, got %d", len(capped))
	}
}

func TestIntegrationLinkRepository_GetAndIncrement(t *testing.T) {
	ctx, repo := newTestEnv(t)
	links := NewLinkRepository(repo)

	u := testutil.NewTestURL(t, "abc123", 5)
	if err := links.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := links.IncrementClickCount(ctx, "abc123", 2); err != nil {
		t.Fatalf("IncrementClickCount failed: %v", err)
	}

	got, err := links.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ClickCount != 7 || got.OriginalURL != u.OriginalURL {
		t.Fatalf("unexpected link: %+v", got)
	}

	if _, err := links.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := links.IncrementClickCount(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ============================================================================
// Click events
// ============================================================================

func TestIntegrationClickEventRepository_RangeNewestFirstInclusive(t *testing.T) {
	ctx, repo := newTestEnv(t)
	clicks := NewClickEventRepository(repo)

	base := time.Date(2026, 2, 24, 3, 0, 0, 0, time.UTC)
	if err := clicks.BulkInsert(ctx, testutil.Clicks("abc123", base, time.Minute, 5)); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}
	if err := clicks.BulkInsert(ctx, testutil.Clicks("other", base, time.Minute, 3)); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	got, err := clicks.Range(ctx, "abc123",
		model.FormatTimestamp(base.Add(time.Minute)),
		model.FormatTimestamp(base.Add(3*time.Minute)), 0)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}

	var stamps []string
	for _, e := range got {
		stamps = append(stamps, e.Timestamp)
	}
	want := []string{"2026-02-24T03:03:00Z", "2026-02-24T03:02:00Z", "2026-02-24T03:01:00Z"}
	if diff := cmp.Diff(want, stamps); diff != "" {
		t.Fatalf("range mismatch (-want +got):\n%s", diff)
	}
}

func TestIntegrationClickEventRepository_RangePagesAndLimit(t *testing.T) {
	ctx, repo := newTestEnv(t)
	clicks := NewClickEventRepository(repo)

	base := time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC)
	if err := clicks.BulkInsert(ctx, testutil.Clicks("busy", base, time.Second, ClickPageSize+300)); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}
	start, end := model.FormatTimestamp(base), model.FormatTimestamp(base.Add(time.Hour))

	all, err := clicks.Range(ctx, "busy", start, end, 0)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(all) != ClickPageSize+300 {
		t.Fatalf("expected %d events, got %d", ClickPageSize+300, len(all))
	}
	if all[0].Timestamp <= all[len(all)-1].Timestamp {
		t.Fatal("expected newest-first order")
	}

	capped, err := clicks.Range(ctx, "busy", start, end, 1000)
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(capped) != 1000 || capped[0].Timestamp != all[0].Timestamp {
		t.Fatalf("expected newest 1000 events, got %d", len(capped))
	}
}

func TestIntegrationClickEventRepository_BulkInsertValidates(t *testing.T) {
	ctx, repo := newTestEnv(t)

	err := NewClickEventRepository(repo).BulkInsert(ctx, []model.ClickEvent{{ShortID: "x", Timestamp: "yesterday"}})
	if !errors.Is(err, model.ErrTimestampInvalid) {
		t.Fatalf("expected ErrTimestampInvalid, got %v", err)
	}
}

// ============================================================================
// Insights
// ============================================================================

func TestIntegrationInsightRepository_UpsertOverwrites(t *testing.T) {
	ctx, repo := newTestEnv(t)
	insights := NewInsightRepository(repo)

	first := model.PeriodInsight{
		ShortID:   "abc123",
		PeriodKey: model.Period1H,
		StartAt:   "2026-02-24T02:00:00Z",
		EndAt:     "2026-02-24T03:00:00Z",
		Stats: model.Stats{
			Total:           3,
			ClicksByHour:    map[string]int{"12": 3},
			ClicksByDay:     map[string]int{"2026-02-24": 3},
			ClicksByReferer: map[string]int{"google.com": 3},
			ClicksByDevice:  map[string]int{"desktop": 3},
		},
		SuspiciousClicks: 1,
	}
	rate, err := insights.Upsert(ctx, first)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if rate != 0.3333 {
		t.Fatalf("expected rate 0.3333, got %v", rate)
	}

	second := first
	second.Stats = model.Stats{Total: 0, ClicksByHour: map[string]int{}, ClicksByDay: map[string]int{}, ClicksByReferer: map[string]int{}, ClicksByDevice: map[string]int{}}
	second.SuspiciousClicks = 0
	if _, err := insights.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := insights.Get(ctx, "abc123", model.Period1H)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Total != 0 || len(got.ClicksByHour) != 0 || got.SuspiciousRate != 0 {
		t.Fatalf("expected overwritten snapshot, got %+v", got)
	}

	list, err := insights.ListByPeriod(ctx, model.Period1H)
	if err != nil {
		t.Fatalf("ListByPeriod failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one row per (id, period), got %d", len(list))
	}
}

// ============================================================================
// AI results
// ============================================================================

func TestIntegrationAIResultRepository_LatestWins(t *testing.T) {
	ctx, repo := newTestEnv(t)
	results := NewAIResultRepository(repo)

	if _, err := results.Latest(ctx, model.Period30Min); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	older := &model.AIResult{PeriodKey: model.Period30Min, GeneratedAt: time.Date(2026, 2, 24, 1, 0, 0, 0, time.UTC), Trend: json.RawMessage(`{"v":1}`)}
	newer := &model.AIResult{PeriodKey: model.Period30Min, GeneratedAt: time.Date(2026, 2, 24, 2, 0, 0, 0, time.UTC), Insight: json.RawMessage(`{"top3":[]}`)}
	for _, r := range []*model.AIResult{older, newer} {
		if err := results.Append(ctx, r); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := results.Latest(ctx, model.Period30Min)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.ID != newer.ID || got.Trend != nil {
		t.Fatalf("expected newest record with null trend, got %+v", got)
	}

	if err := results.Append(ctx, &model.AIResult{PeriodKey: model.Period30Min}); !errors.Is(err, ErrEmptyAIResult) {
		t.Fatalf("expected ErrEmptyAIResult, got %v", err)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}
