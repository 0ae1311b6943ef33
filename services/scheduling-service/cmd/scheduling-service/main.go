package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookline-dev/bookline/libs/config"
	"github.com/bookline-dev/bookline/libs/db"
	"github.com/bookline-dev/bookline/libs/httpx"
	"github.com/bookline-dev/bookline/libs/kafkax"
	otelx "github.com/bookline-dev/bookline/libs/otel"
	"github.com/bookline-dev/bookline/libs/runtime"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/booking"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/calendar"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/handlers"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/hosts"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/outbox"
	"github.com/bookline-dev/bookline/services/scheduling-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
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

	outboxRepo := outbox.NewRepository(pool)
	store := storage.NewStore(pool, outboxRepo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	sink := buildCalendarSink(logger)

	svc := booking.NewService(store, sink, logger, booking.Config{
		SlotStep: config.Minutes("SLOT_STEP_MINUTES", 30*time.Minute),
		Policy:   hosts.PolicyFromName(config.String("HOST_SELECTION_POLICY", "first_available")),
	})

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handlers.NewBookingHandler(svc, logger).Register(mux)
	handlers.NewAdminHandler(store, logger).Register(mux)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	}
	if origins := config.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		middlewares = append(middlewares, httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(origins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}))
	}
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		limiter := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT", 60), time.Minute, service)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(config.Int("RATE_LIMIT", 60), time.Minute).Middleware())
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
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

// buildCalendarSink wires the external calendar connector when one is
// configured. Builds without generated gRPC stubs, and deployments with no
// connector address, fall back to the no-op sink.
func buildCalendarSink(logger *slog.Logger) calendar.Sink {
	addr := config.String("CALENDAR_GRPC_ADDR", "")
	if addr == "" {
		return calendar.NoopSink{}
	}
	inner, err := calendar.NewGRPCSink(addr)
	if err != nil {
		logger.Error("calendar sink init failed; continuing without connector", "err", err)
		return calendar.NoopSink{}
	}
	if inner == nil {
		logger.Warn("calendar connector configured but not compiled in; continuing without connector")
		return calendar.NoopSink{}
	}
	return calendar.WithBreaker(inner, logger)
}
