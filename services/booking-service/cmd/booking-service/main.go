package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/glowbook/glowbook/libs/config"
	"github.com/glowbook/glowbook/libs/db"
	"github.com/glowbook/glowbook/libs/httpx"
	"github.com/glowbook/glowbook/libs/kafkax"
	otelx "github.com/glowbook/glowbook/libs/otel"
	"github.com/glowbook/glowbook/libs/runtime"
	"github.com/glowbook/glowbook/services/booking-service/internal/availability"
	"github.com/glowbook/glowbook/services/booking-service/internal/consumer"
	"github.com/glowbook/glowbook/services/booking-service/internal/handlers"
	"github.com/glowbook/glowbook/services/booking-service/internal/inbox"
	"github.com/glowbook/glowbook/services/booking-service/internal/migrations"
	"github.com/glowbook/glowbook/services/booking-service/internal/outbox"
	"github.com/glowbook/glowbook/services/booking-service/internal/schedule"
	"github.com/glowbook/glowbook/services/booking-service/internal/storage"
)

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour, time.Hour}
	}
	return offsets
}

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
	if version, err := db.Migrate(dbURL, migrations.FS, "."); err != nil {
		logger.Error("migrations failed", "err", err)
		panic(err)
	} else {
		logger.Info("schema up to date", "version", version)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewBookingRepository(pool)
	replicas := storage.NewReplicaRepository(pool)
	scheduleRepo := schedule.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	resolver := availability.NewResolver(scheduleRepo, repo, replicas)
	offsets := parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "booking-service")
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(brokers) == "" || strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
	startConsumer("stylist.profile.updated.v1", consumer.ProfileHandler(replicas))
	startConsumer("stylist.service.upserted.v1", consumer.CatalogUpsertHandler(replicas))
	startConsumer("stylist.service.deleted.v1", consumer.CatalogDeleteHandler(replicas))
	startConsumer("billing.subscription.activated.v1", consumer.EntitlementsHandler(replicas))
	startConsumer("billing.subscription.canceled.v1", consumer.EntitlementsHandler(replicas))

	bookingHandler := handlers.NewBookingHandler(repo, replicas, outboxRepo, resolver, logger, offsets)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, replicas, resolver, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	setupEntitlementsRoutes(ctx, mux, logger)
	mux.HandleFunc("GET /api/v1/public/availability/{stylistID}", scheduleHandler.GetAvailability)
	mux.HandleFunc("/api/v1/public/slots", scheduleHandler.Slots)
	mux.HandleFunc("/api/v1/public/check", scheduleHandler.Check)
	mux.HandleFunc("/api/v1/availability/schedule", scheduleHandler.PutSchedule)
	mux.HandleFunc("POST /api/v1/availability/exceptions", scheduleHandler.CreateException)
	mux.HandleFunc("DELETE /api/v1/availability/exceptions/{id}", scheduleHandler.DeleteException)
	mux.HandleFunc("POST /api/v1/appointments", bookingHandler.Create)
	mux.HandleFunc("GET /api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/status", bookingHandler.UpdateStatus)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
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
