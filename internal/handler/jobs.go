package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shortify/shortify/internal/analyzer"
	"github.com/shortify/shortify/internal/summarizer"
)

// Invoker runs one trigger.
type Invoker interface {
	Invoke(ctx context.Context, t analyzer.Trigger) (any, error)
}

// AlarmHandler turns one alarm notification into a chat post.
type AlarmHandler interface {
	Handle(ctx context.Context, n summarizer.Notification) (string, error)
}

// JobsHandler exposes the invocation surface over HTTP.
type JobsHandler struct {
	invoker Invoker
	alarms  AlarmHandler
	logger  *slog.Logger
}

// NewJobsHandler creates a new JobsHandler. alarms may be nil.
func NewJobsHandler(invoker Invoker, alarms AlarmHandler, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		invoker: invoker,
		alarms:  alarms,
		logger:  logger.With("component", "handler.jobs"),
	}
}

// Run handles POST /jobs with a trigger payload and answers with the run result.
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read request body")
		return
	}
	trigger, err := analyzer.ParseTrigger(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TRIGGER", err.Error())
		return
	}

	result, err := h.invoker.Invoke(r.Context(), trigger)
	switch {
	case errors.Is(err, analyzer.ErrInvalidTrigger):
		writeError(w, http.StatusBadRequest, "INVALID_TRIGGER", err.Error())
	case errors.Is(err, analyzer.ErrSummarizerDisabled):
		writeError(w, http.StatusServiceUnavailable, "AI_DISABLED", err.Error())
	case err != nil:
		h.logger.Error("job failed", "job", trigger.Job, "error", err)
		writeError(w, http.StatusInternalServerError, "JOB_FAILED", "job failed")
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// AlarmResponse reports what the alarm handler did.
type AlarmResponse struct {
	Outcome string `json:"outcome"`
}

// Alarm handles POST /alarms with a {"subject","message"} notification.
func (h *JobsHandler) Alarm(w http.ResponseWriter, r *http.Request) {
	if h.alarms == nil {
		writeError(w, http.StatusServiceUnavailable, "AI_DISABLED", "alarm summaries are disabled")
		return
	}

	var n summarizer.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid notification body")
		return
	}

	outcome, err := h.alarms.Handle(r.Context(), n)
	if err != nil {
		h.logger.Error("alarm post failed", "outcome", outcome, "error", err)
		writeError(w, http.StatusBadGateway, "DELIVERY_FAILED", "alarm summary could not be delivered")
		return
	}
	writeJSON(w, http.StatusOK, AlarmResponse{Outcome: outcome})
}
