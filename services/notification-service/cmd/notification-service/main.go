package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/fieldbook/internal/outbox"
	"github.com/md-rashed-zaman/fieldbook/libs/config"
	"github.com/md-rashed-zaman/fieldbook/libs/db"
	"github.com/md-rashed-zaman/fieldbook/libs/httpx"
	"github.com/md-rashed-zaman/fieldbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/fieldbook/libs/otel"
	"github.com/md-rashed-zaman/fieldbook/libs/runtime"
	"github.com/md-rashed-zaman/fieldbook/services/notification-service/internal/compose"
	"github.com/md-rashed-zaman/fieldbook/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/fieldbook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/fieldbook/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/fieldbook/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type mailer struct {
	sender email.Sender
	repo   *storage.Repository
	logger *slog.Logger
}

// deliver sends the email and records the outcome. Persist failures are
// returned so the consumer logs them; send failures are recorded as a failed
// notification and not retried.
func (m *mailer) deliver(ctx context.Context, eventType, bookingID, venueID string, msg compose.Message) error {
	status := "sent"
	if err := m.sender.Send(msg.Recipient, msg.Subject, msg.Body); err != nil {
		status = "failed"
		m.logger.Error("email send failed", "err", err, "recipient", msg.Recipient, "event_type", eventType)
	}
	return m.repo.Insert(ctx, storage.Notification{
		EventType: eventType,
		BookingID: bookingID,
		VenueID:   venueID,
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    status,
	})
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@fieldbook.local"),
		config.String("SMTP_USERNAME", ""),
		config.String("SMTP_PASSWORD", ""),
	)
	m := &mailer{sender: sender, repo: notificationsRepo, logger: logger}

	bookingHandler := func(build func(compose.BookingEvent) compose.Message) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			evt, err := compose.ParseBookingEvent(msg.Value)
			if err != nil {
				logger.Error("invalid booking event", "err", err, "topic", msg.Topic)
				return nil
			}
			return m.deliver(ctx, msg.Topic, evt.BookingID, evt.VenueID, build(evt))
		}
	}

	handlers := map[string]consumer.Handler{
		outbox.TopicBookingCreated:     bookingHandler(compose.BookingConfirmation),
		outbox.TopicBookingCancelled:   bookingHandler(compose.BookingCancellation),
		outbox.TopicBookingReminderDue: bookingHandler(compose.BookingReminder),
		outbox.TopicSubscriptionAutoCancelled: func(ctx context.Context, msg kafka.Message) error {
			evt, err := compose.ParseSubscriptionEvent(msg.Value)
			if err != nil {
				logger.Error("invalid subscription event", "err", err, "topic", msg.Topic)
				return nil
			}
			return m.deliver(ctx, msg.Topic, "", evt.VenueID, compose.SubscriptionAutoCancelled(evt))
		},
	}

	topics := make([]string, 0, len(handlers))
	for topic := range handlers {
		topics = append(topics, topic)
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  topics,
	}, handlers)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
