package handlers

import (
	"net/http"
	"time"
)

// HealthCheck returns the health status of the application
// @Summary Health check
// @Description Returns the health status of the application and its backing services
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Health status"
// @Failure 503 {object} map[string]interface{} "Storage unavailable"
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	code := http.StatusOK
	if err := h.storage.Health(); err != nil {
		status["status"] = "unhealthy"
		status["storage_status"] = "unhealthy"
		status["storage_error"] = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		status["storage_status"] = "healthy"
	}

	if h.redis != nil {
		if err := h.redis.Health(); err != nil {
			status["status"] = "unhealthy"
			status["redis_status"] = "unhealthy"
			status["redis_error"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["redis_status"] = "healthy"
		}
	}

	writeJSON(w, code, status)
}
