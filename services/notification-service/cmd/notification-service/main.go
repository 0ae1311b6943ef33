package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookline-dev/bookline/libs/config"
	"github.com/bookline-dev/bookline/libs/db"
	"github.com/bookline-dev/bookline/libs/httpx"
	"github.com/bookline-dev/bookline/libs/kafkax"
	otelx "github.com/bookline-dev/bookline/libs/otel"
	"github.com/bookline-dev/bookline/libs/runtime"
	"github.com/bookline-dev/bookline/services/notification-service/internal/consumer"
	"github.com/bookline-dev/bookline/services/notification-service/internal/email"
	"github.com/bookline-dev/bookline/services/notification-service/internal/inbox"
	"github.com/bookline-dev/bookline/services/notification-service/internal/notify"
	"github.com/bookline-dev/bookline/services/notification-service/internal/outbox"
	"github.com/bookline-dev/bookline/services/notification-service/internal/storage"
)

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
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@bookline.local"),
	)

	handle := appointmentHandler(logger, pool, emailSender, notificationsRepo, outboxRepo)
	topics := []string{notify.TopicScheduled, notify.TopicRescheduled, notify.TopicCancelled}
	for _, topic := range topics {
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   topic,
		}, handle)
		go eventConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMux(
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

// appointmentHandler turns one lifecycle message into a guest email plus a
// persisted notification row and a sent/failed outbox event. Malformed
// payloads are logged and dropped; they would never become sendable.
func appointmentHandler(logger *slog.Logger, pool *db.Pool, sender email.Sender, repo *storage.Repository, outboxRepo *outbox.Repository) consumer.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		evt, err := notify.ParseEvent(msg.Value)
		if err != nil {
			logger.Error("invalid appointment event", "err", err, "topic", msg.Topic)
			return nil
		}
		subject, body, err := notify.GuestEmail(msg.Topic, evt)
		if err != nil {
			logger.Error("unroutable appointment event", "err", err, "topic", msg.Topic)
			return nil
		}

		status := "sent"
		failureReason := ""
		if err := sender.Send(evt.GuestEmail, subject, body); err != nil {
			status = "failed"
			failureReason = err.Error()
			logger.Error("email send failed", "err", err, "recipient", evt.GuestEmail)
		}

		if err := repo.Insert(ctx, storage.Notification{
			AppointmentID: evt.AppointmentID,
			AgencyID:      evt.AgencyID,
			EventType:     msg.Topic,
			Recipient:     evt.GuestEmail,
			Subject:       subject,
			Status:        status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		if err := writeDeliveryEvent(ctx, pool, outboxRepo, evt, msg.Topic, status, failureReason); err != nil {
			logger.Error("failed to enqueue delivery event", "err", err)
			return err
		}

		logger.Info("notification processed", "appointment_id", evt.AppointmentID, "topic", msg.Topic, "status", status)
		return nil
	}
}

func writeDeliveryEvent(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, evt notify.AppointmentEvent, sourceTopic, status, reason string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventType := "notification.sent.v1"
	fields := map[string]any{
		"appointment_id": evt.AppointmentID,
		"agency_id":      evt.AgencyID,
		"source_event":   sourceTopic,
		"recipient":      evt.GuestEmail,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	}
	if status == "failed" {
		eventType = "notification.failed.v1"
		delete(fields, "sent_at")
		fields["error_reason"] = reason
		fields["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   evt.AppointmentID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
