package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/arbdesk/cedearmon/internal/engine"
)

// Ticker runs one engine evaluation pass on demand.
type Ticker interface {
	Tick(ctx context.Context) (engine.TickReport, error)
}

// TickHandler exposes a manual tick trigger, mainly for operators poking at
// a fresh deployment outside the poll schedule.
type TickHandler struct {
	ticker Ticker
	logger *slog.Logger
}

// NewTickHandler creates a TickHandler.
func NewTickHandler(ticker Ticker, logger *slog.Logger) *TickHandler {
	return &TickHandler{
		ticker: ticker,
		logger: logger.With(slog.String("handler", "tick")),
	}
}

// Trigger runs a tick synchronously and returns its report.
// POST /api/tick/trigger
func (h *TickHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	report, err := h.ticker.Tick(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "manual tick failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "tick failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
