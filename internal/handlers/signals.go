package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"signal-router/internal/common/errors"
	"signal-router/internal/storage"
)

// Signal inspection handlers

const defaultSignalListLimit = 200

// SignalResponse renders a stored signal with its parsed fields decoded.
type SignalResponse struct {
	*storage.Signal
	ParsedFields map[string]interface{} `json:"parsed_fields"`
}

func toSignalResponse(signal *storage.Signal) *SignalResponse {
	parsed := map[string]interface{}{}
	json.Unmarshal([]byte(signal.ParsedFields), &parsed)
	return &SignalResponse{Signal: signal, ParsedFields: parsed}
}

// ListSignals returns recently received signals
// @Summary List signals
// @Description Returns the most recently received signals, newest first
// @Tags signals
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of signals (default 200)"
// @Success 200 {array} handlers.SignalResponse "Signals"
// @Router /api/signals [get]
func (h *Handlers) ListSignals(w http.ResponseWriter, r *http.Request) {
	limit := defaultSignalListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, errors.ValidationError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	signals, err := h.storage.ListSignals(limit)
	if err != nil {
		writeError(w, errors.InternalError("failed to list signals", err))
		return
	}

	responses := make([]*SignalResponse, len(signals))
	for i, signal := range signals {
		responses[i] = toSignalResponse(signal)
	}
	writeJSON(w, http.StatusOK, responses)
}

// GetSignal returns one signal together with its delivery history
// @Summary Get signal
// @Description Returns a signal with its parsed fields and every delivery attempt made for it
// @Tags signals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Signal ID"
// @Success 200 {object} map[string]interface{} "Signal and deliveries"
// @Failure 404 {object} map[string]interface{} "Signal not found"
// @Router /api/signals/{id} [get]
func (h *Handlers) GetSignal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, errors.ValidationError("invalid signal id"))
		return
	}

	signal, err := h.storage.GetSignal(id)
	if err != nil {
		writeError(w, errors.NotFoundError("signal"))
		return
	}

	deliveries, err := h.storage.GetDeliveries(id)
	if err != nil {
		writeError(w, errors.InternalError("failed to load deliveries", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signal":     toSignalResponse(signal),
		"deliveries": deliveries,
	})
}
