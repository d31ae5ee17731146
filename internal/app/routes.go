package app

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"signal-router/internal/handlers"
	"signal-router/internal/middleware"
	"signal-router/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers, authMiddleware func(http.Handler) http.Handler, rateLimiter *ratelimit.Limiter) {
	// Add logging middleware to all routes
	router.Use(middleware.LoggingMiddleware)

	// Inbound signal ingestion (token-checked in the handler, no admin auth)
	if rateLimiter != nil {
		inbound := rateLimiter.HTTPMiddleware(ratelimit.IPBasedKey)(http.HandlerFunc(h.HandleInboundWebhook))
		router.Handle("/webhook/{token}", inbound).Methods("POST")
	} else {
		router.HandleFunc("/webhook/{token}", h.HandleInboundWebhook).Methods("POST")
	}

	// Admin login (no auth required)
	router.HandleFunc("/api/auth/login", h.HandleLogin).Methods("POST")

	// Health check (no auth required)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Swagger UI (no auth required)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Admin API (protected). Routes registered above match before the
	// subrouter, so /api/auth/login stays reachable without a token.
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)

	// Rule management endpoints (protected)
	api.HandleFunc("/rules", h.ListRules).Methods("GET")
	api.HandleFunc("/rules", h.CreateRule).Methods("POST")
	api.HandleFunc("/rules/{id}", h.GetRule).Methods("GET")
	api.HandleFunc("/rules/{id}", h.UpdateRule).Methods("PUT")
	api.HandleFunc("/rules/{id}", h.DeleteRule).Methods("DELETE")
	api.HandleFunc("/rules/{id}/toggle", h.ToggleRule).Methods("POST")

	// Signal inspection endpoints (protected)
	api.HandleFunc("/signals", h.ListSignals).Methods("GET")
	api.HandleFunc("/signals/{id}", h.GetSignal).Methods("GET")

	// Statistics endpoint (protected)
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
}
