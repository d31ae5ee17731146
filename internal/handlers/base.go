package handlers

import (
	"encoding/json"
	"net/http"

	"signal-router/internal/auth"
	"signal-router/internal/common/errors"
	"signal-router/internal/config"
	"signal-router/internal/crypto"
	"signal-router/internal/dispatch"
	"signal-router/internal/redis"
	"signal-router/internal/storage"
)

type Handlers struct {
	storage  storage.Storage
	config   *config.Config
	codec    *crypto.TargetCodec
	auth     *auth.Auth
	pipeline *dispatch.Pipeline
	redis    *redis.Client // nil when Redis is not configured
}

func New(store storage.Storage, cfg *config.Config, codec *crypto.TargetCodec, authHandler *auth.Auth, pipeline *dispatch.Pipeline, redisClient *redis.Client) *Handlers {
	return &Handlers{
		storage:  store,
		config:   cfg,
		codec:    codec,
		auth:     authHandler,
		pipeline: pipeline,
		redis:    redisClient,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		status = http.StatusBadRequest
	case errors.ErrTypeAuth:
		status = http.StatusUnauthorized
	case errors.ErrTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrTypeRateLimit:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": err.Error()})
}
