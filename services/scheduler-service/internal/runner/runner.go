// Package runner drives the reconciliation engine on its two cadences.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/reconcile"
)

type Runner struct {
	engine      *reconcile.Engine
	logger      *slog.Logger
	dailyEvery  time.Duration
	hourlyEvery time.Duration
}

type Config struct {
	DailyEvery  time.Duration
	HourlyEvery time.Duration
}

func New(engine *reconcile.Engine, logger *slog.Logger, cfg Config) *Runner {
	if cfg.DailyEvery <= 0 {
		cfg.DailyEvery = 24 * time.Hour
	}
	if cfg.HourlyEvery <= 0 {
		cfg.HourlyEvery = time.Hour
	}
	return &Runner{
		engine:      engine,
		logger:      logger,
		dailyEvery:  cfg.DailyEvery,
		hourlyEvery: cfg.HourlyEvery,
	}
}

// Run blocks until the context is cancelled. The daily pass also fires once
// at startup so a restarted scheduler catches up immediately instead of
// waiting out a full cycle. Overlapping passes are safe: materialization is
// conditional on (subscription, date), so reruns only skip.
func (r *Runner) Run(ctx context.Context) {
	daily := time.NewTicker(r.dailyEvery)
	defer daily.Stop()
	hourly := time.NewTicker(r.hourlyEvery)
	defer hourly.Stop()

	r.runDaily(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-daily.C:
			r.runDaily(ctx)
		case <-hourly.C:
			r.runHourly(ctx)
		}
	}
}

func (r *Runner) runDaily(ctx context.Context) {
	started := time.Now()
	sum := r.engine.RunDaily(ctx)
	r.logger.Info("daily reconciliation pass finished",
		"created", sum.Created,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"cancelled", sum.Cancelled,
		"took", time.Since(started).String(),
	)
}

func (r *Runner) runHourly(ctx context.Context) {
	started := time.Now()
	sum := r.engine.RunHourly(ctx)
	r.logger.Info("hourly reconciliation pass finished",
		"created", sum.Created,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"cancelled", sum.Cancelled,
		"took", time.Since(started).String(),
	)
}
