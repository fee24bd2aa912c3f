// Package service provides read-side business logic for the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shortify/shortify/internal/analytics"
	"github.com/shortify/shortify/internal/classify"
	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/repository"
)

// Service errors.
var (
	ErrShortIDRequired = errors.New("short id is required")
	ErrInvalidPeriod   = errors.New("invalid period (use 1min/1m, 1h, 24h/1d, 7d)")
	ErrURLNotFound     = errors.New("url not found")
)

// DefaultStatsPeriod is used when the caller names none.
const DefaultStatsPeriod = "7d"

// DefaultStatsMaxClicks bounds the events read for one stats request.
const DefaultStatsMaxClicks = 10000

var statsPeriods = map[string]time.Duration{
	"1min": time.Minute,
	"1m":   time.Minute,
	"1h":   time.Hour,
	"24h":  24 * time.Hour,
	"1d":   24 * time.Hour,
	"7d":   7 * 24 * time.Hour,
}

// URLGetter looks up one tracked URL.
type URLGetter interface {
	Get(ctx context.Context, shortID string) (*model.TrackedURL, error)
}

// EventReader reads click events for one identifier, bounds inclusive.
type EventReader interface {
	Range(ctx context.Context, shortID, start, end string, limit int) ([]model.ClickEvent, error)
}

// StatsResponse is the on-demand statistics view of one URL.
type StatsResponse struct {
	ShortID         string         `json:"shortId"`
	OriginalURL     string         `json:"originalUrl"`
	Title           string         `json:"title"`
	Period          string         `json:"period"`
	StartAt         string         `json:"startAt"`
	EndAt           string         `json:"endAt"`
	TotalClicks     int64          `json:"totalClicks"`
	PeriodClicks    int            `json:"periodClicks"`
	ClicksByHour    map[string]int `json:"clicksByHour"`
	ClicksByDay     map[string]int `json:"clicksByDay"`
	ClicksByReferer map[string]int `json:"clicksByReferer"`
	ClicksByDevice  map[string]int `json:"clicksByDevice"`
	PeakHour        *string        `json:"peakHour"`
	TopReferer      *string        `json:"topReferer"`
}

// StatsService computes statistics over a caller-chosen trailing window.
type StatsService struct {
	urls        URLGetter
	events      EventReader
	topReferers int
	maxClicks   int
	clock       clock.Clock
}

// NewStatsService creates a new StatsService.
func NewStatsService(urls URLGetter, events EventReader, topReferers int, clk clock.Clock) *StatsService {
	if clk == nil {
		clk = clock.New()
	}
	return &StatsService{
		urls:        urls,
		events:      events,
		topReferers: topReferers,
		maxClicks:   DefaultStatsMaxClicks,
		clock:       clk,
	}
}

// ParseStatsPeriod normalizes a period alias. Empty means DefaultStatsPeriod.
func ParseStatsPeriod(s string) (string, time.Duration, error) {
	p := strings.ToLower(strings.TrimSpace(s))
	if p == "" {
		p = DefaultStatsPeriod
	}
	d, ok := statsPeriods[p]
	if !ok {
		return "", 0, ErrInvalidPeriod
	}
	return p, d, nil
}

// Get returns statistics for shortID over the trailing period. Referers are
// reduced to their host and hours are zero-filled in the display timezone.
func (s *StatsService) Get(ctx context.Context, shortID, period string) (*StatsResponse, error) {
	if strings.TrimSpace(shortID) == "" {
		return nil, ErrShortIDRequired
	}
	period, d, err := ParseStatsPeriod(period)
	if err != nil {
		return nil, err
	}

	u, err := s.urls.Get(ctx, shortID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrURLNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get url: %w", err)
	}

	end := s.clock.Now().UTC().Truncate(time.Second)
	w := model.Window{Start: end.Add(-d), End: end}
	events, err := s.events.Range(ctx, shortID, w.StartAt(), w.EndAt(), s.maxClicks)
	if err != nil {
		return nil, fmt.Errorf("read clicks: %w", err)
	}

	byDomain := make([]model.ClickEvent, len(events))
	referers := analytics.NewCounter()
	for i, e := range events {
		e.Referer = classify.RefererDomain(e.Referer)
		byDomain[i] = e
		referers.Add(e.Referer, 1)
	}
	stats := analytics.Aggregate(byDomain, s.topReferers)

	resp := &StatsResponse{
		ShortID:         u.ShortID,
		OriginalURL:     u.OriginalURL,
		Title:           u.Title,
		Period:          period,
		StartAt:         w.StartAt(),
		EndAt:           w.EndAt(),
		TotalClicks:     u.ClickCount,
		PeriodClicks:    stats.Total,
		ClicksByHour:    zeroFilledHours(stats.ClicksByHour),
		ClicksByDay:     stats.ClicksByDay,
		ClicksByReferer: stats.ClicksByReferer,
		ClicksByDevice:  stats.ClicksByDevice,
	}
	if len(events) > 0 {
		peak := peakHour(resp.ClicksByHour)
		resp.PeakHour = &peak
		top := referers.MostCommon(1)[0].Key
		resp.TopReferer = &top
	}
	return resp, nil
}

func zeroFilledHours(byHour map[string]int) map[string]int {
	out := make(map[string]int, 24)
	for h := 0; h < 24; h++ {
		key := fmt.Sprintf("%02d", h)
		out[key] = byHour[key]
	}
	return out
}

// peakHour returns the busiest hour, the earliest one on ties.
func peakHour(byHour map[string]int) string {
	best := "00"
	for h := 1; h < 24; h++ {
		key := fmt.Sprintf("%02d", h)
		if byHour[key] > byHour[best] {
			best = key
		}
	}
	return best
}
