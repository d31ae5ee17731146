package handlers

import (
	"net/http"

	"signal-router/internal/common/errors"
)

// GetStats returns aggregate routing counters
// @Summary Routing statistics
// @Description Returns totals for signals, deliveries and enabled rules
// @Tags system
// @Produce json
// @Security BearerAuth
// @Success 200 {object} storage.Stats "Counters"
// @Router /api/stats [get]
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.storage.GetStats()
	if err != nil {
		writeError(w, errors.InternalError("failed to compute stats", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
