package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"signal-router/internal/common/logging"
)

// startRetentionSweeper schedules a daily purge of signals older than the
// configured retention window. A zero retention setting disables the sweep.
func (app *App) startRetentionSweeper() {
	days := app.Config.SignalRetentionDays
	if days <= 0 {
		return
	}

	app.retention = cron.New()
	app.retention.AddFunc("@daily", func() {
		cutoff := time.Now().AddDate(0, 0, -days)
		deleted, err := app.Storage.DeleteSignalsBefore(cutoff)
		if err != nil {
			app.Logger.Error("Retention sweep failed", err)
			return
		}
		if deleted > 0 {
			app.Logger.Info("Retention sweep completed",
				logging.Field{Key: "deleted_signals", Value: deleted},
				logging.Field{Key: "cutoff", Value: cutoff.Format(time.RFC3339)},
			)
		}
	})
	app.retention.Start()

	app.Logger.Info("Retention sweeper started", logging.Field{Key: "retention_days", Value: days})
}

func (app *App) stopRetentionSweeper(ctx context.Context) {
	if app.retention == nil {
		return
	}
	select {
	case <-app.retention.Stop().Done():
	case <-ctx.Done():
	}
}
