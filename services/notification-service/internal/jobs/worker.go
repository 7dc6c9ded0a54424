package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/glowbook/glowbook/libs/db"
	otelx "github.com/glowbook/glowbook/libs/otel"
	"github.com/glowbook/glowbook/services/notification-service/internal/email"
	"github.com/glowbook/glowbook/services/notification-service/internal/outbox"
	"github.com/glowbook/glowbook/services/notification-service/internal/sms"
	"github.com/glowbook/glowbook/services/notification-service/internal/storage"
)

// Worker drains due jobs and delivers them. Jobs are claimed with
// FOR UPDATE SKIP LOCKED so multiple instances can run side by side;
// a failed delivery retries with backoff until max attempts, then goes
// to the DLQ topic.
type Worker struct {
	pool        *db.Pool
	repo        *Repository
	store       *storage.Repository
	outbox      *outbox.Repository
	emailSender email.Sender
	smsSender   sms.Sender
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	backoff     time.Duration
	failSuffix  string
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
	// FailSuffix forces a failure for recipients ending with it. Local
	// testing only.
	FailSuffix string
}

func NewWorker(pool *db.Pool, repo *Repository, store *storage.Repository, outboxRepo *outbox.Repository, emailSender email.Sender, smsSender sms.Sender, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:        pool,
		repo:        repo,
		store:       store,
		outbox:      outboxRepo,
		emailSender: emailSender,
		smsSender:   smsSender,
		logger:      logger,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		backoff:     cfg.Backoff,
		failSuffix:  cfg.FailSuffix,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("notification batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	var done []int64
	for _, job := range due {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)

		sendErr := w.deliver(jobCtx, tx, job)
		if sendErr == nil {
			done = append(done, job.ID)
			continue
		}

		attempts := job.Attempts + 1
		nextRunAt := time.Now().UTC().Add(w.backoff)
		if err := w.repo.MarkFailed(ctx, tx, job.ID, attempts, job.MaxAttempts, nextRunAt, sendErr.Error()); err != nil {
			return err
		}
		if attempts >= job.MaxAttempts {
			if err := w.recordFailure(jobCtx, tx, job, sendErr.Error()); err != nil {
				return err
			}
		}
		w.logger.Warn("notification delivery failed",
			"appointment_id", job.AppointmentID,
			"kind", job.Kind,
			"attempts", attempts,
			"err", sendErr,
		)
	}

	if err := w.repo.MarkProcessed(ctx, tx, done); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Worker) deliver(ctx context.Context, tx pgx.Tx, job Job) error {
	recipient := strings.TrimSpace(job.Recipient)
	if recipient == "" && job.ClientID != "" {
		contact, ok, err := w.store.GetContact(ctx, job.ClientID)
		if err != nil {
			return err
		}
		if ok {
			recipient = contact.Email
		}
	}
	if recipient == "" {
		return fmt.Errorf("no recipient for appointment %s", job.AppointmentID)
	}
	if w.failSuffix != "" && strings.HasSuffix(recipient, w.failSuffix) {
		return fmt.Errorf("simulated failure")
	}

	subject, body := w.compose(job)

	var sendErr error
	switch strings.ToLower(job.Channel) {
	case "", "email":
		sendErr = w.emailSender.Send(recipient, subject, body)
	case "sms":
		sendErr = w.smsSender.Send(ctx, recipient, body)
	default:
		sendErr = fmt.Errorf("unsupported channel: %s", job.Channel)
	}
	if sendErr != nil {
		return sendErr
	}

	if err := w.store.InsertNotification(ctx, tx, storage.Notification{
		AppointmentID: job.AppointmentID,
		StylistID:     job.StylistID,
		Channel:       job.Channel,
		Recipient:     recipient,
		Payload:       job.TemplateData,
		Status:        "sent",
	}); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": job.AppointmentID,
		"stylist_id":     job.StylistID,
		"kind":           job.Kind,
		"channel":        job.Channel,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   job.AppointmentID,
		EventType:     outbox.TopicNotificationSent,
		Payload:       payload,
	})
}

func (w *Worker) compose(job Job) (string, string) {
	when := job.StartTime.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	if tz, ok := job.TemplateData["timezone"].(string); ok && tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			when = job.StartTime.In(loc).Format("Mon, 02 Jan 2006 15:04")
		}
	}
	salon := ""
	if name, ok := job.TemplateData["salon_name"].(string); ok {
		salon = name
	}

	var subject, body string
	switch job.Kind {
	case "confirmation":
		subject = "Appointment confirmed"
		body = fmt.Sprintf("Your appointment on %s is confirmed.", when)
	case "cancellation":
		subject = "Appointment cancelled"
		body = "Your appointment has been cancelled."
	default:
		subject = "Appointment reminder"
		body = fmt.Sprintf("Reminder: you have an appointment on %s.", when)
	}
	if salon != "" {
		body = fmt.Sprintf("[%s] %s", salon, body)
	}
	return subject, body
}

func (w *Worker) recordFailure(ctx context.Context, tx pgx.Tx, job Job, reason string) error {
	if err := w.store.InsertNotification(ctx, tx, storage.Notification{
		AppointmentID: job.AppointmentID,
		StylistID:     job.StylistID,
		Channel:       job.Channel,
		Recipient:     job.Recipient,
		Payload:       job.TemplateData,
		Status:        "failed",
	}); err != nil {
		return err
	}

	failedPayload, err := json.Marshal(map[string]any{
		"appointment_id": job.AppointmentID,
		"stylist_id":     job.StylistID,
		"kind":           job.Kind,
		"channel":        job.Channel,
		"error_reason":   reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   job.AppointmentID,
		EventType:     outbox.TopicNotificationFailed,
		Payload:       failedPayload,
	}); err != nil {
		return err
	}

	dlqPayload, err := json.Marshal(map[string]any{
		"appointment_id": job.AppointmentID,
		"stylist_id":     job.StylistID,
		"kind":           job.Kind,
		"remind_at":      job.RemindAt.UTC().Format(time.RFC3339),
		"error_reason":   reason,
	})
	if err != nil {
		return err
	}
	return w.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   job.AppointmentID,
		EventType:     outbox.TopicReminderDLQ,
		Payload:       dlqPayload,
	})
}
