// Package app wires the application together: configuration, storage,
// the target codec, the dispatch pipeline and the HTTP surface.
package app

import (
	"fmt"
	"strconv"

	"github.com/robfig/cron/v3"
	"signal-router/internal/auth"
	"signal-router/internal/common/errors"
	commonhttp "signal-router/internal/common/http"
	"signal-router/internal/common/logging"
	"signal-router/internal/config"
	"signal-router/internal/crypto"
	"signal-router/internal/dispatch"
	"signal-router/internal/redis"
	"signal-router/internal/storage"

	// Storage adapters register themselves with the factory.
	_ "signal-router/internal/storage/postgres"
	_ "signal-router/internal/storage/sqlite"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	Codec       *crypto.TargetCodec
	Auth        *auth.Auth
	Pipeline    *dispatch.Pipeline
	RedisClient *redis.Client
	Logger      logging.Logger
	retention   *cron.Cron
	shutdownCh  chan struct{}
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:     cfg,
		Logger:     logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
		shutdownCh: make(chan struct{}),
	}

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		// Redis is optional, inbound rate limiting degrades to off
		app.Logger.Warn("Redis initialization failed, continuing without rate limiting",
			logging.Field{Key: "error", Value: err.Error()})
	}

	codec, err := crypto.NewTargetCodec(cfg.EncryptionKey)
	if err != nil {
		return nil, errors.ConfigError("invalid encryption key: " + err.Error())
	}
	app.Codec = codec

	authHandler, err := auth.New(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	app.Auth = authHandler

	client := commonhttp.NewHTTPClientWithTimeout(cfg.DispatchTimeout)
	app.Pipeline = dispatch.New(app.Storage, codec, client, cfg.DispatchTimeout, logging.GetGlobalLogger())

	return app, nil
}

func (app *App) initializeStorage() error {
	switch app.Config.DatabaseType {
	case "postgres":
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "port", Value: app.Config.PostgresPort},
			logging.Field{Key: "database", Value: app.Config.PostgresDB},
		)
	default:
		app.Logger.Info("Database: SQLite", logging.Field{Key: "path", Value: app.Config.DatabasePath})
	}

	store, err := storage.New(app.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.Storage = store
	return nil
}

func (app *App) initializeRedis() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: Not configured (inbound rate limiting disabled)")
		return nil
	}

	redisDB, _ := strconv.Atoi(app.Config.RedisDB)
	redisPoolSize, _ := strconv.Atoi(app.Config.RedisPoolSize)

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       redisDB,
		PoolSize: redisPoolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	return nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Storage != nil {
		app.Storage.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
