package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"signal-router/internal/handlers"
	"signal-router/internal/ratelimit"
	"signal-router/internal/server"
)

// RunServer builds the HTTP surface and returns the server ready to start
func (app *App) RunServer() (*server.Server, http.Handler) {
	h := handlers.New(app.Storage, app.Config, app.Codec, app.Auth, app.Pipeline, app.RedisClient)

	router := mux.NewRouter()
	SetupRoutes(router, h, app.Auth.RequireAuth, app.initializeRateLimiter())

	app.startRetentionSweeper()

	return server.New(router, app.Config.Port), router
}

func (app *App) initializeRateLimiter() *ratelimit.Limiter {
	if app.RedisClient == nil || !app.Config.RateLimitEnabled {
		return nil
	}

	limit, err := strconv.Atoi(app.Config.RateLimitDefault)
	if err != nil || limit <= 0 {
		limit = 100
	}
	window, err := time.ParseDuration(app.Config.RateLimitWindow)
	if err != nil || window <= 0 {
		window = time.Minute
	}

	return ratelimit.NewLimiter(app.RedisClient, &ratelimit.Config{
		DefaultLimit:  limit,
		DefaultWindow: window,
		Enabled:       true,
	})
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown(ctx context.Context) error {
	close(app.shutdownCh)
	app.stopRetentionSweeper(ctx)
	return nil
}
