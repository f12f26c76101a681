package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/availability"
	"github.com/md-rashed-zaman/fieldbook/internal/outbox"
	"github.com/md-rashed-zaman/fieldbook/internal/recurrence"
	"github.com/md-rashed-zaman/fieldbook/internal/storage"
	"github.com/md-rashed-zaman/fieldbook/libs/config"
	"github.com/md-rashed-zaman/fieldbook/libs/db"
	"github.com/md-rashed-zaman/fieldbook/libs/httpx"
	"github.com/md-rashed-zaman/fieldbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/fieldbook/libs/otel"
	"github.com/md-rashed-zaman/fieldbook/libs/runtime"
	"github.com/md-rashed-zaman/fieldbook/services/booking-service/internal/handlers"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	resolver := recurrence.NewResolver(subRepo, venueRepo, bookingRepo)
	evaluator := availability.NewEvaluator(bookingRepo, resolver)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	maxAdvanceDays := config.Int("MAX_ADVANCE_BOOKING_DAYS", 30)
	scanHorizonDays := config.Int("CONFLICT_SCAN_HORIZON_DAYS", 60)

	venueHandler := handlers.NewVenueHandler(venueRepo, evaluator, logger)
	bookingHandler := handlers.NewBookingHandler(bookingRepo, venueRepo, outboxRepo, evaluator, logger, maxAdvanceDays)
	subHandler := handlers.NewSubscriptionHandler(subRepo, venueRepo, resolver, logger, scanHorizonDays)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/venues", venueHandler.List)
	mux.HandleFunc("/api/v1/venues/create", venueHandler.Create)
	mux.HandleFunc("/api/v1/venues/update", venueHandler.Update)
	mux.HandleFunc("/api/v1/admin/venues/approval", venueHandler.SetApproval)
	mux.HandleFunc("/api/v1/public/slots", venueHandler.Slots)
	mux.HandleFunc("/api/v1/public/availability", bookingHandler.CheckAvailability)
	mux.HandleFunc("/api/v1/bookings", bookingHandler.List)
	mux.HandleFunc("/api/v1/bookings/create", bookingHandler.Create)
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/subscriptions", subHandler.List)
	mux.HandleFunc("/api/v1/subscriptions/create", subHandler.Create)
	mux.HandleFunc("/api/v1/subscriptions/cancel", subHandler.Cancel)

	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var limit httpx.Middleware
	if rdb != nil {
		limit = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: []string{config.String("CORS_ALLOWED_ORIGINS", "*")}}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
		limit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
