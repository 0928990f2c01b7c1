package handler

import (
	"log/slog"
	"net/http"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// WatchlistHandler serves the instrument watch-set.
type WatchlistHandler struct {
	watchlist domain.WatchlistStore
	logger    *slog.Logger
}

// NewWatchlistHandler creates a WatchlistHandler.
func NewWatchlistHandler(watchlist domain.WatchlistStore, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{
		watchlist: watchlist,
		logger:    logger.With(slog.String("handler", "watchlist")),
	}
}

// List returns all enabled instruments.
// GET /api/watchlist
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.watchlist.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list watchlist failed",
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list watchlist")
		return
	}
	if instruments == nil {
		instruments = []domain.Instrument{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"instruments": instruments})
}
