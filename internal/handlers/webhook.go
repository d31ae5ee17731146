package handlers

import (
	"crypto/subtle"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"signal-router/internal/common/errors"
	"signal-router/internal/common/logging"
)

// HandleInboundWebhook ingests one signal.
// @Summary Ingest a signal
// @Description Accepts a JSON object, evaluates it against enabled routing rules and forwards it to every matched target.
// @Tags webhook
// @Accept json
// @Produce json
// @Param token path string true "Inbound token"
// @Param payload body object true "Signal payload"
// @Success 200 {object} dispatch.Result "Ingestion summary"
// @Failure 400 {object} map[string]interface{} "Body is not a JSON object"
// @Failure 401 {object} map[string]interface{} "Invalid inbound token"
// @Failure 413 {object} map[string]interface{} "Body exceeds the configured maximum size"
// @Router /webhook/{token} [post]
func (h *Handlers) HandleInboundWebhook(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.config.InboundToken)) != 1 {
		writeError(w, errors.AuthError("invalid token"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodySize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				map[string]interface{}{"ok": false, "error": "request body too large"})
			return
		}
		// Anything else is a broken upload, e.g. the client went away
		writeError(w, errors.ValidationError("failed to read request body"))
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), raw)
	if err != nil {
		if !errors.IsType(err, errors.ErrTypeValidation) {
			logging.Error("Signal ingestion failed", err)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":               true,
		"signal_id":        result.SignalID,
		"matched_rule_ids": result.MatchedRuleIDs,
		"delivery_count":   result.DeliveryCount,
	})
}
