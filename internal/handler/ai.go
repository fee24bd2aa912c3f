package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/summarizer"
)

// DefaultAIPeriodKey is served when the query names no period.
const DefaultAIPeriodKey = model.Period30Min

// LatestReader returns the newest summary for a period.
type LatestReader interface {
	Latest(ctx context.Context, period model.PeriodKey) (summarizer.LatestResponse, error)
}

// InvalidPeriodResponse lists the accepted period keys.
type InvalidPeriodResponse struct {
	Message string   `json:"message"`
	Allowed []string `json:"allowed"`
}

// AIHandler serves stored summaries to the dashboard.
type AIHandler struct {
	latest LatestReader
	logger *slog.Logger
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(latest LatestReader, logger *slog.Logger) *AIHandler {
	return &AIHandler{
		latest: latest,
		logger: logger.With("component", "handler.ai"),
	}
}

// Latest handles GET /ai/latest?periodKey=P%2330MIN.
// A period without a stored summary answers 200 with found=false.
func (h *AIHandler) Latest(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("periodKey"))
	period := DefaultAIPeriodKey
	if raw != "" {
		p, err := model.ParsePeriodKey(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, InvalidPeriodResponse{
				Message: "INVALID_periodKey",
				Allowed: model.AllowedPeriodKeys(),
			})
			return
		}
		period = p
	}

	resp, err := h.latest.Latest(r.Context(), period)
	if err != nil {
		h.logger.Error("latest summary read failed", "period_key", period, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read summary")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
