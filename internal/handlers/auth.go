package handlers

import (
	"encoding/json"
	"net/http"

	"signal-router/internal/common/errors"
)

// Auth handlers

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates the administrator
// @Summary Log in
// @Description Verifies the configured admin credentials and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body handlers.loginRequest true "Credentials"
// @Success 200 {object} map[string]interface{} "Bearer token"
// @Failure 401 {object} map[string]interface{} "Invalid credentials"
// @Router /api/auth/login [post]
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ValidationError("invalid JSON body"))
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"token": token,
	})
}
