package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/glowbook/glowbook/libs/config"
	"github.com/glowbook/glowbook/libs/db"
	"github.com/glowbook/glowbook/libs/httpx"
	"github.com/glowbook/glowbook/libs/kafkax"
	otelx "github.com/glowbook/glowbook/libs/otel"
	"github.com/glowbook/glowbook/libs/runtime"
	"github.com/glowbook/glowbook/services/stylist-service/internal/consumer"
	"github.com/glowbook/glowbook/services/stylist-service/internal/handlers"
	"github.com/glowbook/glowbook/services/stylist-service/internal/inbox"
	"github.com/glowbook/glowbook/services/stylist-service/internal/migrations"
	"github.com/glowbook/glowbook/services/stylist-service/internal/outbox"
	"github.com/glowbook/glowbook/services/stylist-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "stylist-service")
	port, err := config.Port("PORT", "8082")
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

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	if strings.TrimSpace(brokers) != "" {
		for _, topic := range []string{"billing.subscription.activated.v1", "billing.subscription.canceled.v1"} {
			c := consumer.New(logger, inboxRepo, consumer.Config{
				Brokers: brokers,
				GroupID: config.String("KAFKA_GROUP_ID", "stylist-service"),
				Topic:   topic,
			}, consumer.EntitlementsHandler(repo, logger))
			go c.Run(ctx)
		}
	}

	handler := handlers.New(repo, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/stylist/profile", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.GetProfile(w, r)
		case http.MethodPut:
			handler.UpdateProfile(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("POST /api/v1/stylist/services", handler.CreateService)
	mux.HandleFunc("GET /api/v1/stylist/services", handler.ListServices)
	mux.HandleFunc("PUT /api/v1/stylist/services/{id}", handler.UpdateService)
	mux.HandleFunc("DELETE /api/v1/stylist/services/{id}", handler.DeleteService)
	mux.HandleFunc("GET /api/v1/public/stylists/{stylistID}", handler.PublicProfile)
	mux.HandleFunc("GET /api/v1/public/stylists/{stylistID}/services", handler.ListServices)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "stylist")
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
