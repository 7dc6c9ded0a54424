package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/glowbook/glowbook/libs/config"
	"github.com/glowbook/glowbook/libs/db"
	"github.com/glowbook/glowbook/libs/httpx"
	"github.com/glowbook/glowbook/libs/kafkax"
	otelx "github.com/glowbook/glowbook/libs/otel"
	"github.com/glowbook/glowbook/libs/runtime"
	"github.com/glowbook/glowbook/services/notification-service/internal/consumer"
	"github.com/glowbook/glowbook/services/notification-service/internal/email"
	"github.com/glowbook/glowbook/services/notification-service/internal/inbox"
	"github.com/glowbook/glowbook/services/notification-service/internal/jobs"
	"github.com/glowbook/glowbook/services/notification-service/internal/migrations"
	"github.com/glowbook/glowbook/services/notification-service/internal/outbox"
	"github.com/glowbook/glowbook/services/notification-service/internal/sms"
	"github.com/glowbook/glowbook/services/notification-service/internal/storage"
)

type reminderRequestedPayload struct {
	AppointmentID string    `json:"appointment_id"`
	StylistID     string    `json:"stylist_id"`
	ClientID      string    `json:"client_id"`
	StartTime     time.Time `json:"start_time"`
	RemindAt      time.Time `json:"remind_at"`
}

type appointmentBookedPayload struct {
	AppointmentID   string    `json:"appointment_id"`
	StylistID       string    `json:"stylist_id"`
	ClientID        string    `json:"client_id"`
	ClientName      string    `json:"client_name"`
	ServiceID       string    `json:"service_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type appointmentCancelledPayload struct {
	AppointmentID string    `json:"appointment_id"`
	StylistID     string    `json:"stylist_id"`
	ClientID      string    `json:"client_id"`
	Reason        string    `json:"reason"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

type userCreatedPayload struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func insertJob(ctx context.Context, pool *db.Pool, jobsRepo *jobs.Repository, job jobs.Job) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := jobsRepo.Insert(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit(ctx)
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

	inboxRepo := inbox.NewRepository(pool)
	store := storage.NewRepository(pool)
	jobsRepo := jobs.NewRepository()
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@glowbook.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	smsProvider := strings.ToLower(config.String("SMS_PROVIDER", "noop"))
	smsWebhookURL := config.String("SMS_WEBHOOK_URL", "")
	smsWebhookToken := config.String("SMS_WEBHOOK_TOKEN", "")
	var smsSender sms.Sender
	switch smsProvider {
	case "webhook":
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	case "noop":
		smsSender = sms.NewNoopSender()
	default:
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	}

	backoffSeconds, err := strconv.Atoi(config.String("NOTIFICATION_BACKOFF_SECONDS", "60"))
	if err != nil {
		logger.Error("invalid NOTIFICATION_BACKOFF_SECONDS", "err", err)
		panic(err)
	}
	worker := jobs.NewWorker(pool, jobsRepo, store, outboxRepo, emailSender, smsSender, logger, jobs.WorkerConfig{
		Interval:   2 * time.Second,
		BatchSize:  50,
		Backoff:    time.Duration(backoffSeconds) * time.Second,
		FailSuffix: config.String("NOTIFICATION_FAIL_SUFFIX", ""),
	})
	go worker.Run(ctx)

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	reminderConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   "booking.reminder.requested.v1",
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload reminderRequestedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid reminder payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.StylistID == "" || payload.RemindAt.IsZero() {
			logger.Error("missing reminder fields", "appointment_id", payload.AppointmentID)
			return nil
		}
		remindAt := payload.RemindAt.UTC()
		err := insertJob(ctx, pool, jobsRepo, jobs.Job{
			IdempotencyKey: payload.AppointmentID + "|" + remindAt.Format(time.RFC3339) + "|email",
			Kind:           "reminder",
			AppointmentID:  payload.AppointmentID,
			StylistID:      payload.StylistID,
			ClientID:       payload.ClientID,
			Channel:        "email",
			StartTime:      payload.StartTime,
			RemindAt:       remindAt,
			TemplateData:   map[string]any{},
		})
		if err != nil {
			logger.Error("failed to enqueue reminder job", "err", err)
			return err
		}
		logger.Info("reminder job enqueued", "appointment_id", payload.AppointmentID, "remind_at", remindAt)
		return nil
	})
	go reminderConsumer.Run(ctx)

	bookedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   "booking.appointment.booked.v1",
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload appointmentBookedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid booked payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.StylistID == "" {
			logger.Error("missing booked fields")
			return nil
		}
		now := time.Now().UTC()
		err := insertJob(ctx, pool, jobsRepo, jobs.Job{
			IdempotencyKey: payload.AppointmentID + "|confirmation",
			Kind:           "confirmation",
			AppointmentID:  payload.AppointmentID,
			StylistID:      payload.StylistID,
			ClientID:       payload.ClientID,
			Channel:        "email",
			StartTime:      payload.StartTime,
			RemindAt:       now,
			TemplateData: map[string]any{
				"client_name": payload.ClientName,
				"service_id":  payload.ServiceID,
			},
		})
		if err != nil {
			logger.Error("failed to enqueue confirmation job", "err", err)
			return err
		}
		return nil
	})
	go bookedConsumer.Run(ctx)

	cancelledConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   "booking.appointment.cancelled.v1",
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload appointmentCancelledPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid cancelled payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" {
			logger.Error("missing cancelled fields")
			return nil
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := jobsRepo.CancelPending(ctx, tx, payload.AppointmentID); err != nil {
			logger.Error("failed to cancel pending jobs", "err", err)
			return err
		}
		if payload.ClientID != "" {
			cancelledAt := payload.CancelledAt
			if cancelledAt.IsZero() {
				cancelledAt = time.Now().UTC()
			}
			err := jobsRepo.Insert(ctx, tx, jobs.Job{
				IdempotencyKey: payload.AppointmentID + "|cancellation",
				Kind:           "cancellation",
				AppointmentID:  payload.AppointmentID,
				StylistID:      payload.StylistID,
				ClientID:       payload.ClientID,
				Channel:        "email",
				StartTime:      cancelledAt,
				RemindAt:       cancelledAt,
				TemplateData: map[string]any{
					"reason": payload.Reason,
				},
			})
			if err != nil {
				logger.Error("failed to enqueue cancellation job", "err", err)
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Info("appointment cancelled, pending reminders dropped", "appointment_id", payload.AppointmentID)
		return nil
	})
	go cancelledConsumer.Run(ctx)

	contactConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   "auth.user.created.v1",
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload userCreatedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid user payload", "err", err)
			return nil
		}
		if payload.UserID == "" || payload.Email == "" {
			return nil
		}
		if err := store.UpsertContact(ctx, storage.Contact{
			UserID:      payload.UserID,
			Email:       payload.Email,
			DisplayName: payload.DisplayName,
		}); err != nil {
			logger.Error("failed to upsert contact", "err", err)
			return err
		}
		return nil
	})
	go contactConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
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
