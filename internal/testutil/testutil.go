package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shortify/shortify/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema applies every down migration in reverse order, then every up
// migration in order.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	ups, err := filepath.Glob(filepath.Join(root, "migrations", "*.up.sql"))
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	downs, err := filepath.Glob(filepath.Join(root, "migrations", "*.down.sql"))
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(ups)
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, path := range append(downs, ups...) {
		sql, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestURL creates a tracked URL with sensible defaults.
func NewTestURL(t testing.TB, shortID string, clickCount int64) model.TrackedURL {
	t.Helper()
	return model.TrackedURL{
		ShortID:     shortID,
		OriginalURL: "https://example.com/" + shortID,
		Title:       "Test " + shortID,
		ClickCount:  clickCount,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

// NewClick creates a click event at ts from a desktop browser.
func NewClick(shortID string, ts time.Time) model.ClickEvent {
	return model.ClickEvent{
		ShortID:   shortID,
		Timestamp: model.FormatTimestamp(ts),
		IP:        "ip-hash-1",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
		Referer:   "https://www.google.com/search",
	}
}

// Clicks creates n events spaced step apart, starting at start.
func Clicks(shortID string, start time.Time, step time.Duration, n int) []model.ClickEvent {
	out := make([]model.ClickEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NewClick(shortID, start.Add(time.Duration(i)*step)))
	}
	return out
}

// UniqueShortID generates a unique identifier for tests.
func UniqueShortID(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	return strings.ToLower(id)
}
