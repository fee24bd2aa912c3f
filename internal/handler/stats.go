package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shortify/shortify/internal/service"
)

// StatsGetter computes on-demand statistics for one URL.
type StatsGetter interface {
	Get(ctx context.Context, shortID, period string) (*service.StatsResponse, error)
}

// StatsHandler serves per-URL statistics.
type StatsHandler struct {
	stats  StatsGetter
	logger *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats StatsGetter, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logger.With("component", "handler.stats"),
	}
}

// Get handles GET /stats/{shortId}?period=7d.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortId")
	period := r.URL.Query().Get("period")

	resp, err := h.stats.Get(r.Context(), shortID, period)
	switch {
	case errors.Is(err, service.ErrShortIDRequired):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, service.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "INVALID_PERIOD", err.Error())
	case errors.Is(err, service.ErrURLNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "URL not found")
	case err != nil:
		h.logger.Error("stats failed", "short_id", shortID, "period", period, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	default:
		h.logger.Debug("stats fetched", "short_id", shortID, "period", resp.Period, "period_clicks", resp.PeriodClicks)
		writeJSON(w, http.StatusOK, resp)
	}
}
