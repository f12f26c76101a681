package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/availability"
	"github.com/md-rashed-zaman/fieldbook/internal/outbox"
	"github.com/md-rashed-zaman/fieldbook/internal/reconcile"
	"github.com/md-rashed-zaman/fieldbook/internal/recurrence"
	"github.com/md-rashed-zaman/fieldbook/internal/storage"
	"github.com/md-rashed-zaman/fieldbook/libs/config"
	"github.com/md-rashed-zaman/fieldbook/libs/db"
	"github.com/md-rashed-zaman/fieldbook/libs/httpx"
	"github.com/md-rashed-zaman/fieldbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/fieldbook/libs/otel"
	"github.com/md-rashed-zaman/fieldbook/libs/runtime"
	"github.com/md-rashed-zaman/fieldbook/services/scheduler-service/internal/runner"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduler-service")
	port, err := config.Port("PORT", "8087")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	venueRepo := storage.NewVenueRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	subRepo := storage.NewSubscriptionRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	resolver := recurrence.NewResolver(subRepo, venueRepo, bookingRepo)
	evaluator := availability.NewEvaluator(bookingRepo, resolver)
	events := outbox.NewSink(pool, outboxRepo)

	engine := reconcile.NewEngine(subRepo, bookingRepo, venueRepo, evaluator, events, logger, reconcile.Config{
		MaxAdvanceDays:      config.Int("MAX_ADVANCE_BOOKING_DAYS", 30),
		AutoCancelAfterDays: config.Int("AUTO_CANCEL_AFTER_DAYS", 14),
	})
	reconciler := runner.New(engine, logger, runner.Config{
		DailyEvery:  config.Duration("DAILY_PASS_SECONDS", 24*time.Hour),
		HourlyEvery: config.Duration("HOURLY_PASS_SECONDS", time.Hour),
	})
	go reconciler.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduler")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
