package handler

import (
	"log/slog"
	"net/http"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// EvaluationHandler serves the evaluation history endpoints.
type EvaluationHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewEvaluationHandler creates an EvaluationHandler.
func NewEvaluationHandler(audit domain.AuditStore, logger *slog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		audit:  audit,
		logger: logger.With(slog.String("handler", "evaluations")),
	}
}

// ListRecent returns the newest evaluation rows.
// GET /api/evaluations/recent?limit=N
func (h *EvaluationHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)

	evals, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent evaluations failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list evaluations")
		return
	}
	if evals == nil {
		evals = []domain.Evaluation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluations": evals})
}

// ListAlerts returns the newest evaluation rows that produced an alert.
// GET /api/alerts/recent?limit=N
func (h *EvaluationHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)

	// Alerted rows are a small fraction of evaluations; over-fetch and
	// filter rather than adding a dedicated query.
	evals, err := h.audit.ListRecent(r.Context(), limit*10)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent alerts failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	alerts := make([]domain.Evaluation, 0, limit)
	for _, ev := range evals {
		if !ev.Alerted {
			continue
		}
		alerts = append(alerts, ev)
		if len(alerts) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}
